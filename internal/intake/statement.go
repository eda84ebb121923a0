package intake

import (
	"context"
	"fmt"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/resolve"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// Pipeline runs both intake variants against one tenant-shared store.
type Pipeline struct {
	store    store.Store
	resolver *resolve.Resolver
	refresh  RefreshTrigger
}

// NewPipeline wires the pipeline to its ports.
func NewPipeline(s store.Store, r *resolve.Resolver, refresh RefreshTrigger) *Pipeline {
	return &Pipeline{store: s, resolver: r, refresh: refresh}
}

// IngestStatement processes one bank-statement extraction payload.
//
// Redelivery for the same (account, period) replaces the statement summary
// and its full transaction set; partial patches are not supported.
func (p *Pipeline) IngestStatement(ctx context.Context, orgID string, payload *StatementPayload) (*StatementResult, error) {
	// 1. Validate. Nothing has been written when this fails.
	per, err := validateStatement(payload)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the company.
	company, err := p.resolver.ResolveCompany(ctx, orgID, resolve.CompanyInput{
		Name:         payload.Company.Name,
		TaxID:        payload.Company.TaxID,
		DBAName:      payload.Company.DBAName,
		AddressLine1: payload.Company.AddressLine1,
		AddressLine2: payload.Company.AddressLine2,
		City:         payload.Company.City,
		State:        payload.Company.State,
		ZipCode:      payload.Company.ZipCode,
	})
	if err != nil {
		return nil, err
	}

	// 3. Resolve or create the account under that company.
	account, err := p.resolver.ResolveAccount(ctx, orgID, company.ID, resolve.AccountInput{
		Number:   payload.Account.Number,
		BankName: payload.Account.BankName,
		Type:     payload.Account.Type,
	})
	if err != nil {
		return nil, err
	}

	// 4-5. Classify line items and derive the quality metrics.
	transactions := buildTransactions(payload.Transactions)
	metrics := computeMetrics(transactions)

	statement := &model.Statement{
		OrganizationID: orgID,
		AccountID:      account.ID,
		PeriodStart:    per.start,
		PeriodEnd:      per.end,
		OpeningBalance: payload.Summary.OpeningBalance,
		ClosingBalance: payload.Summary.ClosingBalance,
		TotalCredits:   payload.Summary.TotalCredits,
		TotalDebits:    payload.Summary.TotalDebits,
		CreditCount:    payload.Summary.CreditCount,
		DebitCount:     payload.Summary.DebitCount,

		NSFCount:     metrics.NSFCount,
		NegativeDays: metrics.NegativeBalanceDays,
		ReconciliationDiff: payload.Summary.OpeningBalance + payload.Summary.TotalCredits -
			payload.Summary.TotalDebits - payload.Summary.ClosingBalance,
		TrueRevenue: metrics.TrueRevenue,
	}

	// 6. Upsert the statement and swap its transaction set atomically.
	if err := p.store.ReplaceStatement(ctx, statement, transactions); err != nil {
		return nil, fmt.Errorf("ingest statement: replace statement: %w", err)
	}

	// 7. Kick the rollup refresh. Fire-and-forget: the statement is already
	// durable and the rollup is a reconstructable cache.
	p.refresh.TriggerRefresh(ctx, orgID, company.ID, account.ID)

	// 8. Return resolved ids and metrics.
	return &StatementResult{
		CompanyID:   company.ID,
		AccountID:   account.ID,
		StatementID: statement.ID,
		Metrics:     metrics,
	}, nil
}
