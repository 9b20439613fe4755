package chain

import "github.com/ethereum/go-ethereum/common"

// Fixed Polygon mainnet contract addresses for the trading stack.
var (
	// USDC is the collateral token.
	USDC = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

	// ConditionalTokens holds the ERC-1155 outcome tokens.
	ConditionalTokens = common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045")

	// CTFExchange settles orders on standalone markets.
	CTFExchange = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")

	// NegRiskCTFExchange settles orders on negative-risk market groups.
	NegRiskCTFExchange = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")

	// NegRiskAdapter converts positions between the two settlement paths.
	NegRiskAdapter = common.HexToAddress("0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296")
)
