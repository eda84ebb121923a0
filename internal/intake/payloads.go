// Package intake validates extraction payloads at the boundary and runs the
// document pipelines: resolve entities, upsert period records, bulk-insert
// line items, and trigger the rollup refresh. Loosely-typed extraction JSON
// is parsed into the strict structs below before any pipeline code sees it.
package intake

import "time"

// CompanyBlock is the company-identity portion of an extraction payload.
type CompanyBlock struct {
	Name         string `json:"name"`
	TaxID        string `json:"tax_id"`
	DBAName      string `json:"dba_name"`
	Industry     string `json:"industry"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

// AccountBlock is the account-identity portion of a statement payload.
type AccountBlock struct {
	Number   string `json:"number" validate:"required"`
	BankName string `json:"bank_name"`
	Type     string `json:"type"`
}

// SummaryBlock is the statement-summary portion of a statement payload.
// Dates arrive as YYYY-MM-DD strings and are parsed during validation so an
// unparseable date can be reported against its field.
type SummaryBlock struct {
	PeriodStart    string  `json:"period_start" validate:"required"`
	PeriodEnd      string  `json:"period_end" validate:"required"`
	OpeningBalance float64 `json:"opening_balance"`
	ClosingBalance float64 `json:"closing_balance"`
	TotalCredits   float64 `json:"total_credits"`
	TotalDebits    float64 `json:"total_debits"`
	CreditCount    int     `json:"credit_count"`
	DebitCount     int     `json:"debit_count"`
}

// TransactionItem is one statement line item. Amount is signed: positive is
// a credit, negative a debit.
type TransactionItem struct {
	Date           string  `json:"date" validate:"required"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount"`
	RunningBalance float64 `json:"running_balance"`
}

// StatementPayload is the full statement-intake request.
type StatementPayload struct {
	DocumentID      string            `json:"document_id" validate:"required"`
	ExtractionRunID string            `json:"extraction_run_id" validate:"required"`
	Company         CompanyBlock      `json:"company"`
	Account         AccountBlock      `json:"account"`
	Summary         SummaryBlock      `json:"summary"`
	Transactions    []TransactionItem `json:"transactions"`
}

// OwnerBlock is one owner sub-record on an application payload.
type OwnerBlock struct {
	FirstName    string  `json:"first_name" validate:"required"`
	LastName     string  `json:"last_name" validate:"required"`
	GovernmentID string  `json:"government_id"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	OwnershipPct float64 `json:"ownership_pct"`
}

// ApplicationPayload is the full application-intake request. Owner 1 is
// required; owner 2 is optional.
type ApplicationPayload struct {
	DocumentID      string       `json:"document_id" validate:"required"`
	ExtractionRunID string       `json:"extraction_run_id" validate:"required"`
	Company         CompanyBlock `json:"company"`
	RequestedAmount float64      `json:"requested_amount"`
	Purpose         string       `json:"purpose"`
	Owner1          *OwnerBlock  `json:"owner_1" validate:"required"`
	Owner2          *OwnerBlock  `json:"owner_2"`
	ConfidenceScore float64      `json:"confidence_score"`
}

// StatementMetrics are the derived quality metrics returned to the caller
// and stored on the statement row.
type StatementMetrics struct {
	DepositCount        int     `json:"deposit_count"`
	NSFCount            int     `json:"nsf_count"`
	NegativeBalanceDays int     `json:"negative_balance_days"`
	TrueRevenue         float64 `json:"true_revenue"`
}

// StatementResult is the statement-intake response.
type StatementResult struct {
	CompanyID   string           `json:"company_id"`
	AccountID   string           `json:"account_id"`
	StatementID string           `json:"statement_id"`
	Metrics     StatementMetrics `json:"metrics"`
}

// ApplicationResult is the application-intake response.
type ApplicationResult struct {
	ApplicationID string   `json:"application_id"`
	CompanyID     string   `json:"company_id"`
	OwnerIDs      []string `json:"owner_ids"`
}

// period is a parsed statement period.
type period struct {
	start time.Time
	end   time.Time
}
