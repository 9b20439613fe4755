package relay

import "testing"

func TestNormalizeSubmitResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantAddr string
		wantErr  bool
	}{
		{
			name:   "transactionID key",
			body:   `{"transactionID":"tx-1"}`,
			wantID: "tx-1",
		},
		{
			name:   "transactionId key",
			body:   `{"transactionId":"tx-2"}`,
			wantID: "tx-2",
		},
		{
			name:   "bare id key",
			body:   `{"id":"tx-3"}`,
			wantID: "tx-3",
		},
		{
			name:     "address only",
			body:     `{"address":"0xabc"}`,
			wantAddr: "0xabc",
		},
		{
			name:     "proxyAddress key",
			body:     `{"proxyAddress":"0xdef"}`,
			wantAddr: "0xdef",
		},
		{
			name:     "id and address together",
			body:     `{"transactionID":"tx-4","address":"0xabc"}`,
			wantID:   "tx-4",
			wantAddr: "0xabc",
		},
		{
			name:    "neither id nor address",
			body:    `{"ok":true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := normalizeSubmitResponse([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.TransactionID != tt.wantID {
				t.Errorf("TransactionID = %q, want %q", result.TransactionID, tt.wantID)
			}
			if result.Address != tt.wantAddr {
				t.Errorf("Address = %q, want %q", result.Address, tt.wantAddr)
			}
		})
	}
}

func TestNormalizePollResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState string
		wantErr   bool
	}{
		{
			name:      "state key confirmed",
			body:      `{"transactionID":"tx-1","state":"CONFIRMED"}`,
			wantState: StateConfirmed,
		},
		{
			name:      "status key with prefix",
			body:      `{"id":"tx-1","status":"STATE_MINED"}`,
			wantState: StateMined,
		},
		{
			name:      "new maps to pending",
			body:      `{"id":"tx-1","state":"NEW"}`,
			wantState: StatePending,
		},
		{
			name:      "executed maps to pending",
			body:      `{"id":"tx-1","state":"EXECUTED"}`,
			wantState: StatePending,
		},
		{
			name:      "lowercase failed",
			body:      `{"id":"tx-1","state":"failed"}`,
			wantState: StateFailed,
		},
		{
			name:      "invalid maps to failed",
			body:      `{"id":"tx-1","state":"INVALID"}`,
			wantState: StateFailed,
		},
		{
			name:    "unknown state",
			body:    `{"id":"tx-1","state":"WAT"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := normalizePollResponse([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tx.State != tt.wantState {
				t.Errorf("State = %q, want %q", tx.State, tt.wantState)
			}
		})
	}
}
