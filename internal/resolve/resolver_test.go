package resolve_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/brickdatalab/clear-scrub-sub001/internal/fault"
	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/resolve"
	sqlitestore "github.com/brickdatalab/clear-scrub-sub001/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	org := &model.Organization{ID: "org-1", Name: "Test Lender"}
	if err := db.CreateOrganization(context.Background(), org); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	return db
}

func TestResolveCompany_OrderIndependence(t *testing.T) {
	// Document A: statement-style, name only. Document B: application-style,
	// tax id plus a differently-spelled name that normalizes identically.
	// Both orderings must converge on one company with the tax id set.
	docA := resolve.CompanyInput{Name: "H2 Build, INC."}
	docB := resolve.CompanyInput{Name: "H2 BUILD INC", TaxID: "12-3456789"}

	orderings := []struct {
		name          string
		first, second resolve.CompanyInput
	}{
		{"statement then application", docA, docB},
		{"application then statement", docB, docA},
	}

	for _, tt := range orderings {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestStore(t)
			r := resolve.New(db)
			ctx := context.Background()

			first, err := r.ResolveCompany(ctx, "org-1", tt.first)
			if err != nil {
				t.Fatalf("first resolve failed: %v", err)
			}
			second, err := r.ResolveCompany(ctx, "org-1", tt.second)
			if err != nil {
				t.Fatalf("second resolve failed: %v", err)
			}

			if first.ID != second.ID {
				t.Errorf("expected one company, got %s and %s", first.ID, second.ID)
			}

			companies, err := db.ListCompanies(ctx, "org-1")
			if err != nil {
				t.Fatalf("ListCompanies failed: %v", err)
			}
			if len(companies) != 1 {
				t.Fatalf("expected exactly 1 company row, got %d", len(companies))
			}
			if companies[0].TaxID == nil || *companies[0].TaxID != "12-3456789" {
				t.Errorf("expected tax id backfilled, got %v", companies[0].TaxID)
			}
			if companies[0].NormalizedLegalName == nil || *companies[0].NormalizedLegalName != "H2 BUILD" {
				t.Errorf("expected normalized name H2 BUILD, got %v", companies[0].NormalizedLegalName)
			}
		})
	}
}

func TestResolveCompany_TaxIDOutranksName(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)
	ctx := context.Background()

	byTax, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Original Name", TaxID: "98-7654321"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// A later document with the same tax id but an unrecognizable name must
	// still match by tax id.
	again, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Totally Different Spelling", TaxID: "98-7654321"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if again.ID != byTax.ID {
		t.Errorf("tax id lookup should win: got %s, want %s", again.ID, byTax.ID)
	}
}

func TestResolveCompany_AliasStep(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)
	ctx := context.Background()

	company, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Greenfield Logistics LLC"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// An operator maps a spelling that normalization cannot unify.
	err = db.CreateAlias(ctx, &model.CompanyAlias{
		OrganizationID: "org-1",
		NormalizedName: "GREENFIELD TRUCKING",
		CompanyID:      company.ID,
	})
	if err != nil {
		t.Fatalf("CreateAlias failed: %v", err)
	}

	matched, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Greenfield Trucking, Inc."})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if matched.ID != company.ID {
		t.Errorf("alias should map to existing company: got %s, want %s", matched.ID, company.ID)
	}
}

func TestResolveCompany_TenantIsolation(t *testing.T) {
	db := newTestStore(t)
	if err := db.CreateOrganization(context.Background(), &model.Organization{ID: "org-2", Name: "Other"}); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	r := resolve.New(db)
	ctx := context.Background()

	a, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Shared Name Co"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	b, err := r.ResolveCompany(ctx, "org-2", resolve.CompanyInput{Name: "Shared Name Co"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("same normalized name in different tenants must be distinct companies")
	}
}

func TestResolveCompany_ConcurrentCreate(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)

	// Two near-simultaneous resolutions of the same new company: the unique
	// constraint settles the race and the loser adopts the winner's row.
	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			company, err := r.ResolveCompany(context.Background(), "org-1",
				resolve.CompanyInput{Name: "Race Condition Builders LLC"})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = company.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d failed: %v", i, err)
		}
	}
	if ids[0] != ids[1] {
		t.Errorf("concurrent resolutions returned different ids: %s vs %s", ids[0], ids[1])
	}

	companies, err := db.ListCompanies(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListCompanies failed: %v", err)
	}
	if len(companies) != 1 {
		t.Errorf("expected exactly 1 company row after race, got %d", len(companies))
	}
}

func TestResolveCompany_ValidationFailure(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)

	_, err := r.ResolveCompany(context.Background(), "org-1", resolve.CompanyInput{Name: "..,;"})
	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "company.name" {
		t.Errorf("expected field company.name, got %s", verr.Field)
	}
}

func TestResolveAccount_HashUnification(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)
	ctx := context.Background()

	company, err := r.ResolveCompany(ctx, "org-1", resolve.CompanyInput{Name: "Hash Test Co"})
	if err != nil {
		t.Fatalf("resolve company failed: %v", err)
	}

	first, err := r.ResolveAccount(ctx, "org-1", company.ID, resolve.AccountInput{
		Number: "3618-057-067", BankName: "First Bank",
	})
	if err != nil {
		t.Fatalf("resolve account failed: %v", err)
	}

	// Same digits, different formatting: must resolve to the same account.
	second, err := r.ResolveAccount(ctx, "org-1", company.ID, resolve.AccountInput{
		Number: "3618057067", BankName: "First Bank",
	})
	if err != nil {
		t.Fatalf("resolve account failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("formatting variants resolved to different accounts: %s vs %s", first.ID, second.ID)
	}
	if first.MaskedNumber != "****7067" {
		t.Errorf("expected masked number ****7067, got %s", first.MaskedNumber)
	}
}

func TestResolveAccount_EmptyNumber(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)

	_, err := r.ResolveAccount(context.Background(), "org-1", "company-x", resolve.AccountInput{Number: "no digits here"})
	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestResolveOwner_ByGovernmentID(t *testing.T) {
	db := newTestStore(t)
	r := resolve.New(db)
	ctx := context.Background()

	first, err := r.ResolveOwner(ctx, "org-1", resolve.OwnerInput{
		FirstName: "Dana", LastName: "Reyes", GovernmentID: "555-12-0000",
	})
	if err != nil {
		t.Fatalf("resolve owner failed: %v", err)
	}

	second, err := r.ResolveOwner(ctx, "org-1", resolve.OwnerInput{
		FirstName: "Dana", LastName: "Reyes-Smith", GovernmentID: "555-12-0000",
	})
	if err != nil {
		t.Fatalf("resolve owner failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("same government id resolved to different owners: %s vs %s", first.ID, second.ID)
	}
}
