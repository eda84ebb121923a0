// Package resolve maps noisy, document-derived identity signals onto stable,
// deduplicated records. The resolver never creates two records for the same
// real-world entity regardless of which document type arrives first: lookups
// follow a strict precedence order, and creation races are settled by the
// schema's unique constraints, after which the loser re-resolves.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/brickdatalab/clear-scrub-sub001/internal/fault"
	"github.com/brickdatalab/clear-scrub-sub001/internal/hashing"
	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/normalize"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// Resolver resolves companies, accounts, and owners within one tenant.
type Resolver struct {
	store store.Store
}

// New creates a Resolver backed by the given store.
func New(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// CompanyInput is the identity signal for a company carried by a document.
type CompanyInput struct {
	Name         string
	TaxID        string
	DBAName      string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	ZipCode      string
}

// AccountInput is the identity signal for a bank account.
type AccountInput struct {
	Number   string
	BankName string
	Type     string
}

// OwnerInput is the identity signal for a natural person.
type OwnerInput struct {
	FirstName    string
	LastName     string
	GovernmentID string
	Phone        string
	Email        string
}

// ResolveCompany returns the company the input refers to, creating it when no
// match exists. Precedence, first match wins, tenant-scoped:
//
//  1. exact tax id
//  2. normalized legal name (backfilling a missing tax id on the match)
//  3. manual alias for the normalized name
//  4. create
//
// Tax id outranks name because names vary across documents while a tax id is
// authoritative when present. The alias step lets an operator unify spellings
// that normalization cannot.
func (r *Resolver) ResolveCompany(ctx context.Context, orgID string, in CompanyInput) (*model.Company, error) {
	normalized := normalize.CompanyName(in.Name)

	if in.TaxID == "" && normalized == "" {
		return nil, fault.NewValidation("company.name", "company name or tax id is required")
	}

	company, err := r.lookupCompany(ctx, orgID, in.TaxID, normalized)
	if err != nil {
		return nil, err
	}
	if company != nil {
		if in.TaxID != "" && company.TaxID == nil {
			if err := r.store.BackfillCompanyTaxID(ctx, company.ID, in.TaxID); err != nil {
				return nil, fmt.Errorf("resolve company: backfill tax id: %w", err)
			}
			taxID := in.TaxID
			company.TaxID = &taxID
		}
		return company, nil
	}

	created := &model.Company{
		OrganizationID: orgID,
		LegalName:      in.Name,
		DBAName:        in.DBAName,
		AddressLine1:   in.AddressLine1,
		AddressLine2:   in.AddressLine2,
		City:           in.City,
		State:          in.State,
		ZipCode:        in.ZipCode,
	}
	if normalized != "" {
		created.NormalizedLegalName = &normalized
	}
	if in.TaxID != "" {
		taxID := in.TaxID
		created.TaxID = &taxID
	}

	err = r.store.CreateCompany(ctx, created)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrUniqueViolation) {
		return nil, fmt.Errorf("resolve company: create: %w", err)
	}

	// Lost a creation race: a concurrent request inserted the same logical
	// company first. Re-run the lookup path and adopt the winner's row.
	company, lookupErr := r.lookupCompany(ctx, orgID, in.TaxID, normalized)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if company == nil {
		return nil, &fault.ConflictError{Entity: "company", Key: normalized, Err: err}
	}
	return company, nil
}

// lookupCompany runs precedence steps 1-3. Returns (nil, nil) when all miss.
func (r *Resolver) lookupCompany(ctx context.Context, orgID, taxID, normalized string) (*model.Company, error) {
	if taxID != "" {
		company, err := r.store.FindCompanyByTaxID(ctx, orgID, taxID)
		if err != nil {
			return nil, fmt.Errorf("resolve company: tax id lookup: %w", err)
		}
		if company != nil {
			return company, nil
		}
	}

	if normalized == "" {
		return nil, nil
	}

	company, err := r.store.FindCompanyByNormalizedName(ctx, orgID, normalized)
	if err != nil {
		return nil, fmt.Errorf("resolve company: name lookup: %w", err)
	}
	if company != nil {
		return company, nil
	}

	company, err = r.store.FindAliasCompany(ctx, orgID, normalized)
	if err != nil {
		return nil, fmt.Errorf("resolve company: alias lookup: %w", err)
	}
	return company, nil
}

// ResolveAccount returns the account for the given number under the company,
// creating it on first sighting. Uniqueness is keyed on the one-way hash of
// the digits-only number, scoped per tenant.
func (r *Resolver) ResolveAccount(ctx context.Context, orgID, companyID string, in AccountInput) (*model.Account, error) {
	digits := normalize.AccountNumber(in.Number)
	if digits == "" {
		return nil, fault.NewValidation("account.number", "account number must contain digits")
	}
	hash := hashing.AccountNumber(digits)

	account, err := r.store.FindAccountByHash(ctx, orgID, hash)
	if err != nil {
		return nil, fmt.Errorf("resolve account: hash lookup: %w", err)
	}
	if account != nil {
		return account, nil
	}

	created := &model.Account{
		OrganizationID:    orgID,
		CompanyID:         companyID,
		BankName:          in.BankName,
		AccountNumberHash: hash,
		MaskedNumber:      normalize.MaskedNumber(digits),
		AccountType:       in.Type,
	}

	err = r.store.CreateAccount(ctx, created)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrUniqueViolation) {
		return nil, fmt.Errorf("resolve account: create: %w", err)
	}

	account, lookupErr := r.store.FindAccountByHash(ctx, orgID, hash)
	if lookupErr != nil {
		return nil, fmt.Errorf("resolve account: re-lookup: %w", lookupErr)
	}
	if account == nil {
		return nil, &fault.ConflictError{Entity: "account", Key: hash, Err: err}
	}
	return account, nil
}

// ResolveOwner returns the person the input refers to, keyed by the
// government id when present. Without one there is nothing to match on, so a
// fresh record is created.
func (r *Resolver) ResolveOwner(ctx context.Context, orgID string, in OwnerInput) (*model.Owner, error) {
	if in.FirstName == "" || in.LastName == "" {
		return nil, fault.NewValidation("owner.name", "owner first and last name are required")
	}

	if in.GovernmentID != "" {
		owner, err := r.store.FindOwnerByGovernmentID(ctx, orgID, in.GovernmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve owner: government id lookup: %w", err)
		}
		if owner != nil {
			return owner, nil
		}
	}

	created := &model.Owner{
		OrganizationID: orgID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		Email:          in.Email,
	}
	if in.GovernmentID != "" {
		govID := in.GovernmentID
		created.GovernmentID = &govID
	}

	err := r.store.CreateOwner(ctx, created)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrUniqueViolation) || in.GovernmentID == "" {
		return nil, fmt.Errorf("resolve owner: create: %w", err)
	}

	owner, lookupErr := r.store.FindOwnerByGovernmentID(ctx, orgID, in.GovernmentID)
	if lookupErr != nil {
		return nil, fmt.Errorf("resolve owner: re-lookup: %w", lookupErr)
	}
	if owner == nil {
		return nil, &fault.ConflictError{Entity: "owner", Key: in.GovernmentID, Err: err}
	}
	return owner, nil
}
