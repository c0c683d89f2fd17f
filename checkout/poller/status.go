package poller

import "parts-shop/checkout/gateway"

// ResolveStatus extracts the effective status from a charge and reports
// whether it is terminal. The gateway scatters the status across the
// object, so the priority order is fixed here:
//
//  1. source.charge_status, when present and not "pending" (a non-pending
//     nested status is always terminal)
//  2. the top-level status field
//  3. a synthetic "paid" when only the boolean paid flag is set
func ResolveStatus(charge *gateway.Charge) (string, bool) {
	if charge.Source != nil && charge.Source.ChargeStatus != "" && charge.Source.ChargeStatus != "pending" {
		return charge.Source.ChargeStatus, true
	}
	if charge.Status != "" {
		return charge.Status, isTerminal(charge.Status)
	}
	if charge.Paid {
		return "paid", true
	}
	return "pending", false
}

func isTerminal(status string) bool {
	switch status {
	case "successful", "paid", "failed", "expired":
		return true
	}
	return false
}
