package clob

import "testing"

func TestNormalizePlaceResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantOK   bool
		wantMsg  string
		wantStat string
	}{
		{
			name:   "orderId key",
			body:   `{"success":true,"orderId":"o-1","status":"live"}`,
			wantID: "o-1", wantOK: true, wantStat: "LIVE",
		},
		{
			name:   "orderID key",
			body:   `{"success":true,"orderID":"o-2","status":"matched"}`,
			wantID: "o-2", wantOK: true, wantStat: "MATCHED",
		},
		{
			name:   "bare id key",
			body:   `{"success":true,"id":"o-3"}`,
			wantID: "o-3", wantOK: true,
		},
		{
			name:    "error inside success shape",
			body:    `{"success":true,"errorMsg":"not enough balance / allowance"}`,
			wantOK:  true,
			wantMsg: "not enough balance / allowance",
		},
		{
			name:    "error under alternate key",
			body:    `{"success":false,"error":"market closed"}`,
			wantMsg: "market closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := normalizePlaceResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.RemoteID != tt.wantID {
				t.Errorf("RemoteID = %q, want %q", result.RemoteID, tt.wantID)
			}
			if result.Success != tt.wantOK {
				t.Errorf("Success = %v, want %v", result.Success, tt.wantOK)
			}
			if result.ErrorMsg != tt.wantMsg {
				t.Errorf("ErrorMsg = %q, want %q", result.ErrorMsg, tt.wantMsg)
			}
			if tt.wantStat != "" && result.Status != tt.wantStat {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStat)
			}
		})
	}
}
