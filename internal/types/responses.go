package types

import "time"

// SyncResult is the partial-success outcome of a state reconciliation pass.
// The operation is designed to be safely repeatable, so individual step
// failures are collected here instead of aborting the whole pass.
type SyncResult struct {
	OwnerAddress string    `json:"owner_address"`
	ProxyAddress string    `json:"proxy_address,omitempty"`
	Status       string    `json:"status"`
	Actions      []string  `json:"actions"`
	Errors       []string  `json:"errors,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BatchResult is the aggregate all-or-nothing outcome of a multi-order batch.
// It never reports a partial-success shape: Success is true only when every
// order in the batch went live.
type BatchResult struct {
	BatchID   string    `json:"batch_id"`
	Success   bool      `json:"success"`
	Orders    []Order   `json:"orders"`
	FailedAt  int       `json:"failed_at,omitempty"` // 1-based index of the first failure
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
