package intake

import (
	"context"
	"fmt"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/resolve"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// IngestApplication processes one loan-application extraction payload.
func (p *Pipeline) IngestApplication(ctx context.Context, orgID string, payload *ApplicationPayload) (*ApplicationResult, error) {
	// 1. Validate. Nothing has been written when this fails.
	if err := validateApplication(payload); err != nil {
		return nil, err
	}

	// 2. Resolve the company, then enrich it with the application's profile
	// fields. Applications are the authoritative source for these, so this
	// overwrites existing values; only the tax id stays backfill-only (the
	// resolver already handled it).
	company, err := p.resolver.ResolveCompany(ctx, orgID, resolve.CompanyInput{
		Name:  payload.Company.Name,
		TaxID: payload.Company.TaxID,
	})
	if err != nil {
		return nil, err
	}

	profile := store.CompanyProfile{
		DBAName:      payload.Company.DBAName,
		Industry:     payload.Company.Industry,
		AddressLine1: payload.Company.AddressLine1,
		AddressLine2: payload.Company.AddressLine2,
		City:         payload.Company.City,
		State:        payload.Company.State,
		ZipCode:      payload.Company.ZipCode,
		Phone:        payload.Company.Phone,
		Email:        payload.Company.Email,
	}
	if err := p.store.EnrichCompanyProfile(ctx, company.ID, profile); err != nil {
		return nil, fmt.Errorf("ingest application: enrich company: %w", err)
	}

	// 3. Resolve each present owner and build the stake links.
	var ownerIDs []string
	var links []model.ApplicationOwner
	for _, block := range []*OwnerBlock{payload.Owner1, payload.Owner2} {
		if block == nil {
			continue
		}
		owner, err := p.resolver.ResolveOwner(ctx, orgID, resolve.OwnerInput{
			FirstName:    block.FirstName,
			LastName:     block.LastName,
			GovernmentID: block.GovernmentID,
			Phone:        block.Phone,
			Email:        block.Email,
		})
		if err != nil {
			return nil, err
		}
		ownerIDs = append(ownerIDs, owner.ID)
		links = append(links, model.ApplicationOwner{
			OwnerID:      owner.ID,
			OwnershipPct: block.OwnershipPct,
		})
	}

	// 4. Create the application row, one per source document.
	app := &model.Application{
		OrganizationID:  orgID,
		CompanyID:       company.ID,
		DocumentID:      payload.DocumentID,
		RequestedAmount: payload.RequestedAmount,
		Purpose:         payload.Purpose,
		ConfidenceScore: payload.ConfidenceScore,
	}
	if err := p.store.CreateApplication(ctx, app, links); err != nil {
		return nil, fmt.Errorf("ingest application: create application: %w", err)
	}

	// 5. Return resolved ids.
	return &ApplicationResult{
		ApplicationID: app.ID,
		CompanyID:     company.ID,
		OwnerIDs:      ownerIDs,
	}, nil
}
