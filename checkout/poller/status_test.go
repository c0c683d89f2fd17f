package poller

import (
	"testing"

	"parts-shop/checkout/gateway"
)

func TestResolveStatusPriority(t *testing.T) {
	cases := []struct {
		name         string
		charge       gateway.Charge
		wantStatus   string
		wantTerminal bool
	}{
		{
			name:         "nested status wins over pending top level",
			charge:       gateway.Charge{Status: "pending", Source: &gateway.Source{ChargeStatus: "successful"}},
			wantStatus:   "successful",
			wantTerminal: true,
		},
		{
			name:         "top level failed without source",
			charge:       gateway.Charge{Status: "failed"},
			wantStatus:   "failed",
			wantTerminal: true,
		},
		{
			name:         "paid flag synthesizes paid",
			charge:       gateway.Charge{Paid: true},
			wantStatus:   "paid",
			wantTerminal: true,
		},
		{
			name:         "pending nested falls back to top level",
			charge:       gateway.Charge{Status: "pending", Source: &gateway.Source{ChargeStatus: "pending"}},
			wantStatus:   "pending",
			wantTerminal: false,
		},
		{
			name:         "non-pending nested status is terminal even when unknown",
			charge:       gateway.Charge{Status: "pending", Source: &gateway.Source{ChargeStatus: "reversed"}},
			wantStatus:   "reversed",
			wantTerminal: true,
		},
		{
			name:         "expired top level",
			charge:       gateway.Charge{Status: "expired"},
			wantStatus:   "expired",
			wantTerminal: true,
		},
		{
			name:         "empty charge is pending",
			charge:       gateway.Charge{},
			wantStatus:   "pending",
			wantTerminal: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, terminal := ResolveStatus(&c.charge)
			if status != c.wantStatus {
				t.Errorf("status = %q, want %q", status, c.wantStatus)
			}
			if terminal != c.wantTerminal {
				t.Errorf("terminal = %v, want %v", terminal, c.wantTerminal)
			}
		})
	}
}
