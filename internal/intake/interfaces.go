package intake

import "context"

// RefreshTrigger is the outbound port for requesting a rollup recompute
// after a statement write commits. Implementations must be fire-and-forget:
// the pipeline never learns about, or fails on, a refresh problem.
type RefreshTrigger interface {
	TriggerRefresh(ctx context.Context, orgID, companyID, accountID string)
}

// NopRefreshTrigger discards refresh requests; used by tests and tools that
// do not run the refresher.
type NopRefreshTrigger struct{}

func (NopRefreshTrigger) TriggerRefresh(ctx context.Context, orgID, companyID, accountID string) {}
