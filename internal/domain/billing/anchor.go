// Package billing holds the pure date arithmetic for the subscription
// billing cycle.
package billing

import "time"

// AnchorDay is the fixed day-of-month used for recurring charges.
const AnchorDay = 10

// NextChargeDate returns the next charge date relative to now: the 10th of
// the current month at 00:00 UTC if now falls before it, otherwise the
// 10th of the following month. time.Date normalizes month overflow, so
// December rolls into January of the next year.
func NextChargeDate(now time.Time) time.Time {
	now = now.UTC()
	tenthThisMonth := time.Date(now.Year(), now.Month(), AnchorDay, 0, 0, 0, 0, time.UTC)
	if now.Before(tenthThisMonth) {
		return tenthThisMonth
	}
	return time.Date(now.Year(), now.Month()+1, AnchorDay, 0, 0, 0, 0, time.UTC)
}
