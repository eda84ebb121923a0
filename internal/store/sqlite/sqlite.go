// Package sqlite implements the persistence port on a sqlite database via
// GORM. Unique indexes declared on the model are the cross-request
// coordination mechanism; this package maps constraint rejections onto
// store.ErrUniqueViolation so the resolver can re-resolve.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// Store is the sqlite-backed implementation of store.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
// A single connection keeps sqlite writers serialized instead of surfacing
// SQLITE_BUSY to callers.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports whether err is a unique-constraint rejection.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapCreateErr(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrUniqueViolation, err)
	}
	return err
}

// firstOrNil runs the query and converts ErrRecordNotFound to a clean miss.
func firstOrNil[T any](tx *gorm.DB) (*T, error) {
	var out T
	err := tx.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	return mapCreateErr(s.db.WithContext(ctx).Create(org).Error)
}

func (s *Store) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return firstOrNil[model.Organization](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) FindCompanyByTaxID(ctx context.Context, orgID, taxID string) (*model.Company, error) {
	return firstOrNil[model.Company](s.db.WithContext(ctx).
		Where("organization_id = ? AND tax_id = ?", orgID, taxID))
}

func (s *Store) FindCompanyByNormalizedName(ctx context.Context, orgID, normalizedName string) (*model.Company, error) {
	return firstOrNil[model.Company](s.db.WithContext(ctx).
		Where("organization_id = ? AND normalized_legal_name = ?", orgID, normalizedName))
}

func (s *Store) FindAliasCompany(ctx context.Context, orgID, normalizedName string) (*model.Company, error) {
	alias, err := firstOrNil[model.CompanyAlias](s.db.WithContext(ctx).
		Where("organization_id = ? AND normalized_name = ?", orgID, normalizedName))
	if err != nil || alias == nil {
		return nil, err
	}
	return s.GetCompany(ctx, alias.CompanyID)
}

func (s *Store) CreateAlias(ctx context.Context, alias *model.CompanyAlias) error {
	if alias.ID == "" {
		alias.ID = uuid.NewString()
	}
	return mapCreateErr(s.db.WithContext(ctx).Create(alias).Error)
}

func (s *Store) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	return firstOrNil[model.Company](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) CreateCompany(ctx context.Context, company *model.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	return mapCreateErr(s.db.WithContext(ctx).Create(company).Error)
}

func (s *Store) BackfillCompanyTaxID(ctx context.Context, companyID, taxID string) error {
	err := s.db.WithContext(ctx).
		Model(&model.Company{}).
		Where("id = ? AND tax_id IS NULL", companyID).
		Update("tax_id", taxID).Error
	return mapCreateErr(err)
}

func (s *Store) EnrichCompanyProfile(ctx context.Context, companyID string, profile store.CompanyProfile) error {
	updates := map[string]interface{}{}
	set := func(col, val string) {
		if val != "" {
			updates[col] = val
		}
	}
	set("dba_name", profile.DBAName)
	set("industry", profile.Industry)
	set("address_line1", profile.AddressLine1)
	set("address_line2", profile.AddressLine2)
	set("city", profile.City)
	set("state", profile.State)
	set("zip_code", profile.ZipCode)
	set("phone", profile.Phone)
	set("email", profile.Email)

	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&model.Company{}).
		Where("id = ?", companyID).
		Updates(updates).Error
}

func (s *Store) FindAccountByHash(ctx context.Context, orgID, hash string) (*model.Account, error) {
	return firstOrNil[model.Account](s.db.WithContext(ctx).
		Where("organization_id = ? AND account_number_hash = ?", orgID, hash))
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	return mapCreateErr(s.db.WithContext(ctx).Create(account).Error)
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return firstOrNil[model.Account](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) ListAccountsForCompany(ctx context.Context, companyID string) ([]model.Account, error) {
	var accounts []model.Account
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) FindOwnerByGovernmentID(ctx context.Context, orgID, govID string) (*model.Owner, error) {
	return firstOrNil[model.Owner](s.db.WithContext(ctx).
		Where("organization_id = ? AND government_id = ?", orgID, govID))
}

func (s *Store) CreateOwner(ctx context.Context, owner *model.Owner) error {
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	return mapCreateErr(s.db.WithContext(ctx).Create(owner).Error)
}

func (s *Store) FindStatement(ctx context.Context, accountID string, periodStart, periodEnd time.Time) (*model.Statement, error) {
	return firstOrNil[model.Statement](s.db.WithContext(ctx).
		Where("account_id = ? AND period_start = ? AND period_end = ?", accountID, periodStart, periodEnd))
}

// ReplaceStatement upserts the statement keyed by (account, period) and
// swaps its full transaction set inside one database transaction, so the
// read side never observes a partially replaced statement.
func (s *Store) ReplaceStatement(ctx context.Context, statement *model.Statement, transactions []model.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Statement
		err := tx.Where("account_id = ? AND period_start = ? AND period_end = ?",
			statement.AccountID, statement.PeriodStart, statement.PeriodEnd).
			First(&existing).Error

		switch {
		case err == nil:
			statement.ID = existing.ID
			statement.CreatedAt = existing.CreatedAt
			if err := tx.Model(&model.Statement{}).
				Where("id = ?", existing.ID).
				Select("*").
				Omit("id", "created_at").
				Updates(statement).Error; err != nil {
				return err
			}
			if err := tx.Where("statement_id = ?", existing.ID).
				Delete(&model.Transaction{}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if statement.ID == "" {
				statement.ID = uuid.NewString()
			}
			if err := tx.Create(statement).Error; err != nil {
				return mapCreateErr(err)
			}
		default:
			return err
		}

		for i := range transactions {
			if transactions[i].ID == "" {
				transactions[i].ID = uuid.NewString()
			}
			transactions[i].StatementID = statement.ID
		}
		if len(transactions) == 0 {
			return nil
		}
		return tx.CreateInBatches(transactions, 200).Error
	})
}

func (s *Store) ListStatementsForAccount(ctx context.Context, accountID string) ([]model.Statement, error) {
	var statements []model.Statement
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("period_start").
		Find(&statements).Error
	return statements, err
}

func (s *Store) ListStatementsForCompany(ctx context.Context, companyID string) ([]model.Statement, error) {
	var statements []model.Statement
	err := s.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = statements.account_id").
		Where("accounts.company_id = ?", companyID).
		Order("statements.period_start").
		Find(&statements).Error
	return statements, err
}

func (s *Store) ListTransactions(ctx context.Context, statementID string) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := s.db.WithContext(ctx).
		Where("statement_id = ?", statementID).
		Order("sequence").
		Find(&transactions).Error
	return transactions, err
}

// CreateApplication writes the application and its owner links in one
// transaction. A redelivered document (same document_id, new extraction run)
// replaces the prior row and links instead of duplicating them.
func (s *Store) CreateApplication(ctx context.Context, app *model.Application, owners []model.ApplicationOwner) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Application
		err := tx.Where("document_id = ?", app.DocumentID).First(&existing).Error

		switch {
		case err == nil:
			app.ID = existing.ID
			app.CreatedAt = existing.CreatedAt
			if err := tx.Model(&model.Application{}).
				Where("id = ?", existing.ID).
				Select("*").
				Omit("id", "created_at").
				Updates(app).Error; err != nil {
				return err
			}
			if err := tx.Where("application_id = ?", existing.ID).
				Delete(&model.ApplicationOwner{}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if app.ID == "" {
				app.ID = uuid.NewString()
			}
			if err := tx.Create(app).Error; err != nil {
				return err
			}
		default:
			return err
		}

		for i := range owners {
			if owners[i].ID == "" {
				owners[i].ID = uuid.NewString()
			}
			owners[i].ApplicationID = app.ID
		}
		if len(owners) == 0 {
			return nil
		}
		return tx.Create(&owners).Error
	})
	return mapCreateErr(err)
}

func (s *Store) FindReceipt(ctx context.Context, orgID, docID, runID string) (*model.IntakeReceipt, error) {
	return firstOrNil[model.IntakeReceipt](s.db.WithContext(ctx).
		Where("organization_id = ? AND document_id = ? AND extraction_run_id = ?", orgID, docID, runID))
}

func (s *Store) FindSucceededReceiptByFingerprint(ctx context.Context, orgID, docID, fingerprint string) (*model.IntakeReceipt, error) {
	return firstOrNil[model.IntakeReceipt](s.db.WithContext(ctx).
		Where("organization_id = ? AND document_id = ? AND payload_fingerprint = ? AND status = ?",
			orgID, docID, fingerprint, model.ReceiptSucceeded).
		Order("created_at DESC"))
}

// SaveReceipt upserts the receipt for its (tenant, document, extraction run)
// key. A failed attempt's receipt is overwritten when the same run is retried.
func (s *Store) SaveReceipt(ctx context.Context, receipt *model.IntakeReceipt) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.IntakeReceipt
		err := tx.Where("organization_id = ? AND document_id = ? AND extraction_run_id = ?",
			receipt.OrganizationID, receipt.DocumentID, receipt.ExtractionRunID).First(&existing).Error

		switch {
		case err == nil:
			receipt.ID = existing.ID
			receipt.CreatedAt = existing.CreatedAt
			return tx.Model(&model.IntakeReceipt{}).
				Where("id = ?", existing.ID).
				Select("*").
				Omit("id", "created_at").
				Updates(receipt).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if receipt.ID == "" {
				receipt.ID = uuid.NewString()
			}
			return mapCreateErr(tx.Create(receipt).Error)
		default:
			return err
		}
	})
}

// SaveAccountRollups upserts rollups by (account, month). Update-then-create
// keeps the write explicit; a lost race to create means another refresher
// already wrote the same derived row, so the violation is ignored.
func (s *Store) SaveAccountRollups(ctx context.Context, rollups []model.AccountRollup) error {
	for i := range rollups {
		r := &rollups[i]
		res := s.db.WithContext(ctx).
			Model(&model.AccountRollup{}).
			Where("account_id = ? AND month = ?", r.AccountID, r.Month).
			Updates(map[string]interface{}{
				"total_deposits":    r.TotalDeposits,
				"total_withdrawals": r.TotalWithdrawals,
				"total_fees":        r.TotalFees,
				"deposit_count":     r.DepositCount,
				"ending_balance":    r.EndingBalance,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := s.db.WithContext(ctx).Create(r).Error; err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return nil
}

func (s *Store) SaveCompanyRollups(ctx context.Context, rollups []model.CompanyRollup) error {
	for i := range rollups {
		r := &rollups[i]
		res := s.db.WithContext(ctx).
			Model(&model.CompanyRollup{}).
			Where("company_id = ? AND month = ?", r.CompanyID, r.Month).
			Updates(map[string]interface{}{
				"total_deposits":    r.TotalDeposits,
				"total_withdrawals": r.TotalWithdrawals,
				"total_fees":        r.TotalFees,
				"deposit_count":     r.DepositCount,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := s.db.WithContext(ctx).Create(r).Error; err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return nil
}

func (s *Store) ListRollupsForCompany(ctx context.Context, companyID string) ([]model.CompanyRollup, error) {
	var rollups []model.CompanyRollup
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("month").
		Find(&rollups).Error
	return rollups, err
}

func (s *Store) ListCompanies(ctx context.Context, orgID string) ([]model.Company, error) {
	var companies []model.Company
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at").
		Find(&companies).Error
	return companies, err
}

func (s *Store) ListCompaniesWithStatementActivity(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Table("statements").
		Distinct("accounts.company_id").
		Joins("JOIN accounts ON accounts.id = statements.account_id").
		Where("statements.updated_at > ?", since).
		Pluck("accounts.company_id", &ids).Error
	return ids, err
}

// Ensure Store implements the port.
var _ store.Store = (*Store)(nil)
