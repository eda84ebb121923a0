// Package model contains the persistent entity model for the intake and
// resolution engine, configured for GORM. Uniqueness lives in the schema
// (unique indexes), not in application memory: concurrent workers coordinate
// through these constraints and nothing else.
package model

import "time"

// Organization is the multi-tenant isolation root. Every other entity carries
// its id. Created at signup, immutable afterwards.
type Organization struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string
	CreatedAt time.Time
}

// Company is a business entity being underwritten. Append-mostly: created by
// the resolver on first sighting, enriched by later sightings. Nullable
// identity columns use pointers so the unique indexes ignore absent values.
type Company struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index;uniqueIndex:idx_companies_org_name;uniqueIndex:idx_companies_org_taxid"`

	LegalName           string
	NormalizedLegalName *string `gorm:"uniqueIndex:idx_companies_org_name"`
	TaxID               *string `gorm:"uniqueIndex:idx_companies_org_taxid"`
	DBAName             string

	Industry     string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	ZipCode      string
	Phone        string
	Email        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompanyAlias is a human-curated mapping from a normalized name to a
// company. The pipeline only ever reads this table; it exists so an operator
// can unify spellings that normalization alone cannot.
type CompanyAlias struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"uniqueIndex:idx_aliases_org_name"`
	NormalizedName string `gorm:"uniqueIndex:idx_aliases_org_name"`
	CompanyID      string `gorm:"index"`
	CreatedAt      time.Time
}

// Account is a bank account owned by a company. Uniqueness is enforced on
// the one-way hash, scoped per tenant; the plaintext number is never stored.
type Account struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index;uniqueIndex:idx_accounts_org_hash"`
	CompanyID      string `gorm:"index"`

	BankName          string
	AccountNumberHash string `gorm:"uniqueIndex:idx_accounts_org_hash"`
	MaskedNumber      string
	AccountType       string

	CreatedAt time.Time
}

// Statement is one bank-statement period for one account. Unique per
// (account, period); redelivery replaces the row and its transactions.
type Statement struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	OrganizationID string    `gorm:"index"`
	AccountID      string    `gorm:"uniqueIndex:idx_statements_account_period"`
	PeriodStart    time.Time `gorm:"uniqueIndex:idx_statements_account_period"`
	PeriodEnd      time.Time `gorm:"uniqueIndex:idx_statements_account_period"`

	OpeningBalance float64
	ClosingBalance float64
	TotalCredits   float64
	TotalDebits    float64
	CreditCount    int
	DebitCount     int

	// Derived quality metrics, recomputed on every (re)delivery.
	NSFCount           int
	NegativeDays       int
	ReconciliationDiff float64
	TrueRevenue        float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionKind classifies a statement line item.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
	KindFee        TransactionKind = "fee"
)

// Transaction is one line item within a statement. Owned exclusively by its
// statement; bulk-created, replaced wholesale on redelivery.
type Transaction struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	StatementID string `gorm:"index"`

	Date           time.Time
	Description    string
	Amount         float64
	RunningBalance float64
	Kind           TransactionKind
	Sequence       int
}

// Application is one loan-application submission tied to a company.
// Write-once per source document.
type Application struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index"`
	CompanyID      string `gorm:"index"`
	DocumentID     string `gorm:"uniqueIndex"`

	RequestedAmount float64
	Purpose         string
	ConfidenceScore float64

	CreatedAt time.Time
}

// Owner is a natural person tied to applications through ownership stakes.
// Resolved by a government-id-like value within the tenant.
type Owner struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index;uniqueIndex:idx_owners_org_govid"`

	FirstName    string
	LastName     string
	GovernmentID *string `gorm:"uniqueIndex:idx_owners_org_govid"`
	Phone        string
	Email        string

	CreatedAt time.Time
}

// ApplicationOwner links an owner to an application with their stake.
type ApplicationOwner struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ApplicationID string `gorm:"index"`
	OwnerID       string `gorm:"index"`
	OwnershipPct  float64
}

// ReceiptStatus is the terminal state of a processed intake unit.
type ReceiptStatus string

const (
	ReceiptSucceeded ReceiptStatus = "succeeded"
	ReceiptFailed    ReceiptStatus = "failed"
)

// IntakeReceipt records the outcome of one (document, extraction run) unit.
// The unique index is what makes retries at-most-once: a replayed delivery
// finds the receipt and returns the stored result without writes. The index
// is tenant-scoped so one tenant's document ids never collide with another's.
type IntakeReceipt struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	OrganizationID  string `gorm:"index;uniqueIndex:idx_receipts_org_doc_run"`
	DocumentID      string `gorm:"index;uniqueIndex:idx_receipts_org_doc_run"`
	ExtractionRunID string `gorm:"uniqueIndex:idx_receipts_org_doc_run"`

	PayloadFingerprint string `gorm:"index"`
	Status             ReceiptStatus
	ResultJSON         string
	ErrorMessage       string

	CreatedAt time.Time
}

// AccountRollup is the derived monthly summary for one account. A
// reconstructable cache: losing it costs a recompute, never data.
type AccountRollup struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index"`
	AccountID      string `gorm:"uniqueIndex:idx_account_rollups_month"`
	Month          string `gorm:"uniqueIndex:idx_account_rollups_month"`

	TotalDeposits    float64
	TotalWithdrawals float64
	TotalFees        float64
	DepositCount     int
	EndingBalance    float64

	UpdatedAt time.Time
}

// CompanyRollup aggregates the account rollups of one company per month.
type CompanyRollup struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrganizationID string `gorm:"index"`
	CompanyID      string `gorm:"uniqueIndex:idx_company_rollups_month"`
	Month          string `gorm:"uniqueIndex:idx_company_rollups_month"`

	TotalDeposits    float64
	TotalWithdrawals float64
	TotalFees        float64
	DepositCount     int

	UpdatedAt time.Time
}

// All lists every entity for migration.
func All() []interface{} {
	return []interface{}{
		&Organization{},
		&Company{},
		&CompanyAlias{},
		&Account{},
		&Statement{},
		&Transaction{},
		&Application{},
		&Owner{},
		&ApplicationOwner{},
		&IntakeReceipt{},
		&AccountRollup{},
		&CompanyRollup{},
	}
}
