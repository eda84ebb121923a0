package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// monthLayout buckets rollups by calendar month.
const monthLayout = "2006-01"

// Refresher recomputes monthly rollups from committed statements: every
// account of the company first, then the company totals from those. Rollups
// are a derived cache; recomputation is always safe to repeat.
type Refresher struct {
	store store.Store
	log   zerolog.Logger
}

// NewRefresher creates a Refresher over the given store.
func NewRefresher(s store.Store, log zerolog.Logger) *Refresher {
	return &Refresher{store: s, log: log}
}

// Handle is the queue handler for refresh jobs.
func (r *Refresher) Handle(ctx context.Context, job *Job) error {
	return r.RefreshCompany(ctx, job.OrganizationID, job.CompanyID)
}

// RefreshCompany recomputes rollups for all accounts of the company, then
// the company's own monthly totals.
func (r *Refresher) RefreshCompany(ctx context.Context, orgID, companyID string) error {
	accounts, err := r.store.ListAccountsForCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("refresh company %s: list accounts: %w", companyID, err)
	}

	companyMonths := map[string]*model.CompanyRollup{}

	for _, account := range accounts {
		accountMonths, err := r.computeAccountRollups(ctx, orgID, account.ID)
		if err != nil {
			return err
		}

		rollups := make([]model.AccountRollup, 0, len(accountMonths))
		for _, rollup := range accountMonths {
			rollups = append(rollups, *rollup)

			cm := companyMonths[rollup.Month]
			if cm == nil {
				cm = &model.CompanyRollup{
					OrganizationID: orgID,
					CompanyID:      companyID,
					Month:          rollup.Month,
				}
				companyMonths[rollup.Month] = cm
			}
			cm.TotalDeposits += rollup.TotalDeposits
			cm.TotalWithdrawals += rollup.TotalWithdrawals
			cm.TotalFees += rollup.TotalFees
			cm.DepositCount += rollup.DepositCount
		}

		if err := r.store.SaveAccountRollups(ctx, rollups); err != nil {
			return fmt.Errorf("refresh company %s: save account rollups: %w", companyID, err)
		}
	}

	companyRollups := make([]model.CompanyRollup, 0, len(companyMonths))
	for _, rollup := range companyMonths {
		companyRollups = append(companyRollups, *rollup)
	}
	if err := r.store.SaveCompanyRollups(ctx, companyRollups); err != nil {
		return fmt.Errorf("refresh company %s: save company rollups: %w", companyID, err)
	}

	r.log.Info().
		Str("company_id", companyID).
		Int("accounts", len(accounts)).
		Int("months", len(companyMonths)).
		Msg("Rollups refreshed")
	return nil
}

// computeAccountRollups rebuilds the per-month rollups of one account from
// its statements and their transactions.
func (r *Refresher) computeAccountRollups(ctx context.Context, orgID, accountID string) (map[string]*model.AccountRollup, error) {
	statements, err := r.store.ListStatementsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("refresh account %s: list statements: %w", accountID, err)
	}

	months := map[string]*model.AccountRollup{}
	lastSeen := map[string]time.Time{}

	for _, statement := range statements {
		transactions, err := r.store.ListTransactions(ctx, statement.ID)
		if err != nil {
			return nil, fmt.Errorf("refresh account %s: list transactions: %w", accountID, err)
		}

		for _, tx := range transactions {
			month := tx.Date.Format(monthLayout)
			rollup := months[month]
			if rollup == nil {
				rollup = &model.AccountRollup{
					OrganizationID: orgID,
					AccountID:      accountID,
					Month:          month,
				}
				months[month] = rollup
			}

			switch tx.Kind {
			case model.KindDeposit:
				rollup.TotalDeposits += tx.Amount
				rollup.DepositCount++
			case model.KindWithdrawal:
				rollup.TotalWithdrawals += -tx.Amount
			case model.KindFee:
				rollup.TotalFees += -tx.Amount
			}

			// Ending balance follows the latest transaction in the month.
			if !tx.Date.Before(lastSeen[month]) {
				lastSeen[month] = tx.Date
				rollup.EndingBalance = tx.RunningBalance
			}
		}
	}

	return months, nil
}

// Trigger adapts a Publisher to the intake pipeline's fire-and-forget port.
// Publishing uses a bounded timeout detached from the request context so a
// full queue can never fail or outlive the intake call.
type Trigger struct {
	pub Publisher
	log zerolog.Logger
}

// NewTrigger creates the fire-and-forget adapter around a publisher.
func NewTrigger(pub Publisher, log zerolog.Logger) *Trigger {
	return &Trigger{pub: pub, log: log}
}

// TriggerRefresh publishes a refresh job and swallows any failure.
func (t *Trigger) TriggerRefresh(ctx context.Context, orgID, companyID, accountID string) {
	pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job := &Job{
		OrganizationID: orgID,
		CompanyID:      companyID,
		AccountID:      accountID,
	}
	if err := t.pub.PublishRefresh(pubCtx, job); err != nil {
		t.log.Error().Err(err).
			Str("company_id", companyID).
			Msg("Failed to publish rollup refresh")
	}
}
