package upload

import (
	"context"
	"fmt"
	"time"
)

// planUploadLimits maps subscription plan ids to monthly upload allowances.
// Unknown plans fall back to the free tier.
var planUploadLimits = map[string]int{
	"free":        1,
	"monthly_pro": 10,
	"yearly_pro":  10,
}

// Quota is the derived monthly upload allowance. It is recomputed on every
// view of the upload entry step and never cached across sessions.
type Quota struct {
	PlanID string `json:"planId"`
	Usage  int    `json:"usage"`
	Limit  int    `json:"limit"`
}

// Blocked reports whether the caller has exhausted this month's allowance.
func (q Quota) Blocked() bool {
	return q.Usage >= q.Limit
}

// Remaining returns how many uploads are left this month, never negative.
func (q Quota) Remaining() int {
	if r := q.Limit - q.Usage; r > 0 {
		return r
	}
	return 0
}

// UploadLimitFor returns the monthly limit for a plan id.
func UploadLimitFor(planID string) int {
	if limit, ok := planUploadLimits[planID]; ok {
		return limit
	}
	return planUploadLimits["free"]
}

// startOfMonth returns the first instant of now's calendar month in now's
// location.
func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// CheckQuota fetches the caller's plan and this month's own-track count and
// derives the quota gate.
func (c *Coordinator) CheckQuota(ctx context.Context) (Quota, error) {
	planID, err := c.api.PlanID(ctx)
	if err != nil {
		return Quota{}, fmt.Errorf("fetching plan: %w", err)
	}

	usage, err := c.api.OwnTrackCountSince(ctx, startOfMonth(c.now()))
	if err != nil {
		return Quota{}, fmt.Errorf("counting uploads: %w", err)
	}

	return Quota{
		PlanID: planID,
		Usage:  usage,
		Limit:  UploadLimitFor(planID),
	}, nil
}
