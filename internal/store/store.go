// Package store defines the persistence port the intake engine consumes.
// Implementations live in subpackages; the engine only sees these
// interfaces. Lookup methods return (nil, nil) on a clean miss - "not found"
// is a normal resolver outcome, not an error.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
)

// ErrUniqueViolation is returned by create methods when a schema unique
// constraint rejects the row. The resolver relies on this as its race-safety
// backstop: the loser of a concurrent create re-runs its lookup and finds
// the winner's row.
var ErrUniqueViolation = errors.New("unique constraint violation")

// CompanyProfile carries the application-sourced fields that overwrite the
// company row on enrichment. Applications are authoritative for these.
type CompanyProfile struct {
	DBAName      string
	Industry     string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	ZipCode      string
	Phone        string
	Email        string
}

// Store is the persistence port for the intake and resolution engine.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)

	// Company lookups, tenant-scoped. Each returns (nil, nil) on miss.
	FindCompanyByTaxID(ctx context.Context, orgID, taxID string) (*model.Company, error)
	FindCompanyByNormalizedName(ctx context.Context, orgID, normalizedName string) (*model.Company, error)
	FindAliasCompany(ctx context.Context, orgID, normalizedName string) (*model.Company, error)

	// CreateAlias records a human-curated name mapping. The pipeline never
	// calls this; it exists for operator tooling.
	CreateAlias(ctx context.Context, alias *model.CompanyAlias) error
	GetCompany(ctx context.Context, id string) (*model.Company, error)

	// CreateCompany inserts a new company. Returns ErrUniqueViolation when a
	// concurrent create won the normalized-name or tax-id constraint.
	CreateCompany(ctx context.Context, company *model.Company) error

	// BackfillCompanyTaxID sets the tax id only if it is currently null.
	BackfillCompanyTaxID(ctx context.Context, companyID, taxID string) error

	// EnrichCompanyProfile overwrites the profile fields on the company row.
	// Empty fields in the profile leave the stored value untouched.
	EnrichCompanyProfile(ctx context.Context, companyID string, profile CompanyProfile) error

	// Accounts
	FindAccountByHash(ctx context.Context, orgID, hash string) (*model.Account, error)
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccountsForCompany(ctx context.Context, companyID string) ([]model.Account, error)

	// Owners
	FindOwnerByGovernmentID(ctx context.Context, orgID, govID string) (*model.Owner, error)
	CreateOwner(ctx context.Context, owner *model.Owner) error

	// Statements. ReplaceStatement atomically inserts or updates the
	// statement keyed by (account, period) and swaps the full transaction
	// set; readers never observe a half-written statement.
	FindStatement(ctx context.Context, accountID string, periodStart, periodEnd time.Time) (*model.Statement, error)
	ReplaceStatement(ctx context.Context, statement *model.Statement, transactions []model.Transaction) error
	ListStatementsForAccount(ctx context.Context, accountID string) ([]model.Statement, error)
	ListStatementsForCompany(ctx context.Context, companyID string) ([]model.Statement, error)
	ListTransactions(ctx context.Context, statementID string) ([]model.Transaction, error)

	// Applications. Creation includes the owner links in one transaction.
	CreateApplication(ctx context.Context, app *model.Application, owners []model.ApplicationOwner) error

	// Intake receipts, tenant-scoped: document ids from different tenants
	// are unrelated and must never replay each other's results.
	FindReceipt(ctx context.Context, orgID, docID, runID string) (*model.IntakeReceipt, error)
	FindSucceededReceiptByFingerprint(ctx context.Context, orgID, docID, fingerprint string) (*model.IntakeReceipt, error)
	SaveReceipt(ctx context.Context, receipt *model.IntakeReceipt) error

	// Rollups. Save methods upsert by (owner id, month).
	SaveAccountRollups(ctx context.Context, rollups []model.AccountRollup) error
	SaveCompanyRollups(ctx context.Context, rollups []model.CompanyRollup) error
	ListRollupsForCompany(ctx context.Context, companyID string) ([]model.CompanyRollup, error)

	// Read side
	ListCompanies(ctx context.Context, orgID string) ([]model.Company, error)

	// ListCompaniesWithStatementActivity returns ids of companies whose
	// statements changed since the given time. The standalone worker uses it
	// to re-refresh rollups missed by the in-process queue (crash recovery).
	ListCompaniesWithStatementActivity(ctx context.Context, since time.Time) ([]string, error)
}
