package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
	sqlitestore "github.com/brickdatalab/clear-scrub-sub001/internal/store/sqlite"
)

func newStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, id := range []string{"org-1", "org-2"} {
		if err := db.CreateOrganization(context.Background(), &model.Organization{ID: id, Name: id}); err != nil {
			t.Fatalf("CreateOrganization %s failed: %v", id, err)
		}
	}
	return db
}

func strPtr(s string) *string { return &s }

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func TestGetCompany_MissReturnsNil(t *testing.T) {
	db := newStore(t)

	company, err := db.GetCompany(context.Background(), "nope")
	if err != nil {
		t.Fatalf("expected clean miss, got error: %v", err)
	}
	if company != nil {
		t.Errorf("expected nil company, got %+v", company)
	}
}

func TestCreateCompany_DuplicateNameMapsToUniqueViolation(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	first := &model.Company{
		OrganizationID:      "org-1",
		LegalName:           "H2 Build, INC.",
		NormalizedLegalName: strPtr("H2 BUILD"),
	}
	if err := db.CreateCompany(ctx, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	dup := &model.Company{
		OrganizationID:      "org-1",
		LegalName:           "H2 Build",
		NormalizedLegalName: strPtr("H2 BUILD"),
	}
	err := db.CreateCompany(ctx, dup)
	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}

	// The same normalized name in another tenant is not a conflict.
	other := &model.Company{
		OrganizationID:      "org-2",
		LegalName:           "H2 Build",
		NormalizedLegalName: strPtr("H2 BUILD"),
	}
	if err := db.CreateCompany(ctx, other); err != nil {
		t.Errorf("cross-tenant create failed: %v", err)
	}
}

func TestCreateCompany_NullIdentityColumnsDoNotCollide(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	// Two companies with no tax id must coexist: the unique index only
	// applies to present values.
	a := &model.Company{OrganizationID: "org-1", LegalName: "A", NormalizedLegalName: strPtr("A")}
	b := &model.Company{OrganizationID: "org-1", LegalName: "B", NormalizedLegalName: strPtr("B")}
	if err := db.CreateCompany(ctx, a); err != nil {
		t.Fatalf("create A failed: %v", err)
	}
	if err := db.CreateCompany(ctx, b); err != nil {
		t.Fatalf("create B failed: %v", err)
	}
}

func TestCreateAccount_DuplicateHashMapsToUniqueViolation(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	account := &model.Account{
		OrganizationID:    "org-1",
		CompanyID:         "company-1",
		AccountNumberHash: "abc123",
		MaskedNumber:      "****7067",
	}
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	dup := &model.Account{
		OrganizationID:    "org-1",
		CompanyID:         "company-2",
		AccountNumberHash: "abc123",
		MaskedNumber:      "****7067",
	}
	err := db.CreateAccount(ctx, dup)
	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestBackfillCompanyTaxID_OnlyWhenAbsent(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	company := &model.Company{
		OrganizationID:      "org-1",
		LegalName:           "Acme",
		NormalizedLegalName: strPtr("ACME"),
	}
	if err := db.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := db.BackfillCompanyTaxID(ctx, company.ID, "11-1111111"); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	// A second backfill with a different value must not overwrite.
	if err := db.BackfillCompanyTaxID(ctx, company.ID, "99-9999999"); err != nil {
		t.Fatalf("second backfill failed: %v", err)
	}

	got, err := db.GetCompany(ctx, company.ID)
	if err != nil || got == nil {
		t.Fatalf("GetCompany failed: %v", err)
	}
	if got.TaxID == nil || *got.TaxID != "11-1111111" {
		t.Errorf("tax id = %v, want the first backfilled value", got.TaxID)
	}
}

func TestReplaceStatement_KeepsIdentityAndSwapsTransactions(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	periodStart := date(t, "2025-01-01")
	periodEnd := date(t, "2025-01-31")

	first := &model.Statement{
		OrganizationID: "org-1",
		AccountID:      "account-1",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TotalCredits:   100,
	}
	firstTxs := []model.Transaction{
		{Date: periodStart, Description: "DEPOSIT", Amount: 100, Kind: model.KindDeposit, Sequence: 1},
	}
	if err := db.ReplaceStatement(ctx, first, firstTxs); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}

	second := &model.Statement{
		OrganizationID: "org-1",
		AccountID:      "account-1",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TotalCredits:   300,
	}
	secondTxs := []model.Transaction{
		{Date: periodStart, Description: "DEPOSIT", Amount: 100, Kind: model.KindDeposit, Sequence: 1},
		{Date: periodStart, Description: "DEPOSIT", Amount: 200, Kind: model.KindDeposit, Sequence: 2},
	}
	if err := db.ReplaceStatement(ctx, second, secondTxs); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("redelivery changed the statement id: %s vs %s", first.ID, second.ID)
	}

	statements, err := db.ListStatementsForAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("ListStatementsForAccount failed: %v", err)
	}
	if len(statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(statements))
	}
	if statements[0].TotalCredits != 300 {
		t.Errorf("total credits = %v, want the replacement's 300", statements[0].TotalCredits)
	}

	transactions, err := db.ListTransactions(ctx, second.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(transactions) != 2 {
		t.Errorf("expected the old set to be swapped for 2 transactions, got %d", len(transactions))
	}
}

func TestReplaceStatement_DistinctPeriodsCoexist(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	jan := &model.Statement{
		OrganizationID: "org-1", AccountID: "account-1",
		PeriodStart: date(t, "2025-01-01"), PeriodEnd: date(t, "2025-01-31"),
	}
	feb := &model.Statement{
		OrganizationID: "org-1", AccountID: "account-1",
		PeriodStart: date(t, "2025-02-01"), PeriodEnd: date(t, "2025-02-28"),
	}
	if err := db.ReplaceStatement(ctx, jan, nil); err != nil {
		t.Fatalf("january replace failed: %v", err)
	}
	if err := db.ReplaceStatement(ctx, feb, nil); err != nil {
		t.Fatalf("february replace failed: %v", err)
	}

	statements, err := db.ListStatementsForAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("ListStatementsForAccount failed: %v", err)
	}
	if len(statements) != 2 {
		t.Errorf("expected 2 statements across periods, got %d", len(statements))
	}
}

func TestSaveReceipt_UpsertsByDocumentAndRun(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	failed := &model.IntakeReceipt{
		OrganizationID:  "org-1",
		DocumentID:      "doc-1",
		ExtractionRunID: "run-1",
		Status:          model.ReceiptFailed,
		ErrorMessage:    "account.number: required",
	}
	if err := db.SaveReceipt(ctx, failed); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	succeeded := &model.IntakeReceipt{
		OrganizationID:     "org-1",
		DocumentID:         "doc-1",
		ExtractionRunID:    "run-1",
		PayloadFingerprint: "fp-1",
		Status:             model.ReceiptSucceeded,
		ResultJSON:         `{"ok":true}`,
	}
	if err := db.SaveReceipt(ctx, succeeded); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := db.FindReceipt(ctx, "org-1", "doc-1", "run-1")
	if err != nil || got == nil {
		t.Fatalf("FindReceipt failed: %v", err)
	}
	if got.ID != failed.ID {
		t.Errorf("upsert created a new row: %s vs %s", failed.ID, got.ID)
	}
	if got.Status != model.ReceiptSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("expected the failure message to be cleared, got %q", got.ErrorMessage)
	}

	byFP, err := db.FindSucceededReceiptByFingerprint(ctx, "org-1", "doc-1", "fp-1")
	if err != nil || byFP == nil {
		t.Fatalf("FindSucceededReceiptByFingerprint failed: %v", err)
	}
	if byFP.ResultJSON != `{"ok":true}` {
		t.Errorf("result = %s, want stored JSON", byFP.ResultJSON)
	}
}

func TestReceipts_TenantScoped(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	// Two tenants using the same document and run ids get independent rows.
	for _, orgID := range []string{"org-1", "org-2"} {
		receipt := &model.IntakeReceipt{
			OrganizationID:  orgID,
			DocumentID:      "doc-1",
			ExtractionRunID: "run-1",
			Status:          model.ReceiptSucceeded,
			ResultJSON:      `{"org":"` + orgID + `"}`,
		}
		if err := db.SaveReceipt(ctx, receipt); err != nil {
			t.Fatalf("SaveReceipt for %s failed: %v", orgID, err)
		}
	}

	for _, orgID := range []string{"org-1", "org-2"} {
		got, err := db.FindReceipt(ctx, orgID, "doc-1", "run-1")
		if err != nil || got == nil {
			t.Fatalf("FindReceipt for %s failed: %v", orgID, err)
		}
		if got.ResultJSON != `{"org":"`+orgID+`"}` {
			t.Errorf("receipt for %s holds %s, want its own result", orgID, got.ResultJSON)
		}
	}

	// The lookup never crosses tenants.
	miss, err := db.FindReceipt(ctx, "org-3", "doc-1", "run-1")
	if err != nil {
		t.Fatalf("cross-tenant lookup errored: %v", err)
	}
	if miss != nil {
		t.Errorf("expected no receipt for an unrelated tenant, got %+v", miss)
	}
}

func TestCreateApplication_ReplacesByDocument(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	first := &model.Application{
		OrganizationID:  "org-1",
		CompanyID:       "company-1",
		DocumentID:      "app-doc-1",
		RequestedAmount: 100000,
	}
	firstOwners := []model.ApplicationOwner{
		{OwnerID: "owner-1", OwnershipPct: 100},
	}
	if err := db.CreateApplication(ctx, first, firstOwners); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Re-extraction of the same document: one row, links replaced.
	second := &model.Application{
		OrganizationID:  "org-1",
		CompanyID:       "company-1",
		DocumentID:      "app-doc-1",
		RequestedAmount: 250000,
	}
	secondOwners := []model.ApplicationOwner{
		{OwnerID: "owner-1", OwnershipPct: 60},
		{OwnerID: "owner-2", OwnershipPct: 40},
	}
	if err := db.CreateApplication(ctx, second, secondOwners); err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("redelivery changed the application id: %s vs %s", first.ID, second.ID)
	}
	if secondOwners[0].ApplicationID != first.ID || secondOwners[1].ApplicationID != first.ID {
		t.Error("owner links not attached to the surviving application row")
	}
}

func TestSaveCompanyRollups_UpdateThenCreate(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	initial := []model.CompanyRollup{
		{OrganizationID: "org-1", CompanyID: "company-1", Month: "2025-01", TotalDeposits: 100, DepositCount: 1},
	}
	if err := db.SaveCompanyRollups(ctx, initial); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	updated := []model.CompanyRollup{
		{OrganizationID: "org-1", CompanyID: "company-1", Month: "2025-01", TotalDeposits: 500, DepositCount: 3},
		{OrganizationID: "org-1", CompanyID: "company-1", Month: "2025-02", TotalDeposits: 200, DepositCount: 1},
	}
	if err := db.SaveCompanyRollups(ctx, updated); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	rollups, err := db.ListRollupsForCompany(ctx, "company-1")
	if err != nil {
		t.Fatalf("ListRollupsForCompany failed: %v", err)
	}
	if len(rollups) != 2 {
		t.Fatalf("expected 2 rollups, got %d", len(rollups))
	}
	if rollups[0].TotalDeposits != 500 || rollups[0].DepositCount != 3 {
		t.Errorf("january rollup not updated in place: %+v", rollups[0])
	}
	if rollups[1].Month != "2025-02" {
		t.Errorf("expected february rollup second, got %s", rollups[1].Month)
	}
}

func TestFindAliasCompany(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	company := &model.Company{
		OrganizationID:      "org-1",
		LegalName:           "Greenfield Trucking LLC",
		NormalizedLegalName: strPtr("GREENFIELD TRUCKING"),
	}
	if err := db.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create company failed: %v", err)
	}
	if err := db.CreateAlias(ctx, &model.CompanyAlias{
		OrganizationID: "org-1",
		NormalizedName: "GREENFIELD TRANSPORT",
		CompanyID:      company.ID,
	}); err != nil {
		t.Fatalf("create alias failed: %v", err)
	}

	got, err := db.FindAliasCompany(ctx, "org-1", "GREENFIELD TRANSPORT")
	if err != nil || got == nil {
		t.Fatalf("FindAliasCompany failed: %v", err)
	}
	if got.ID != company.ID {
		t.Errorf("alias resolved to %s, want %s", got.ID, company.ID)
	}

	// Aliases are tenant scoped.
	miss, err := db.FindAliasCompany(ctx, "org-2", "GREENFIELD TRANSPORT")
	if err != nil {
		t.Fatalf("cross-tenant lookup errored: %v", err)
	}
	if miss != nil {
		t.Errorf("expected alias to be invisible to other tenants, got %+v", miss)
	}
}
