// Package idempotency makes repeated deliveries of the same logical unit of
// work safe. The unit is the (document_id, extraction_run_id) pair: an exact
// replay returns the stored result without re-executing writes, while a new
// extraction run for a known document reprocesses through the pipeline's
// upsert semantics.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brickdatalab/clear-scrub-sub001/internal/fault"
	"github.com/brickdatalab/clear-scrub-sub001/internal/hashing"
	"github.com/brickdatalab/clear-scrub-sub001/internal/intake"
	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
	"github.com/brickdatalab/clear-scrub-sub001/internal/store"
)

// maxAttempts bounds pipeline retries on transient store failures before the
// error surfaces to the caller.
const maxAttempts = 3

// Guard wraps the intake pipeline with at-most-once processing.
type Guard struct {
	store    store.Store
	pipeline *intake.Pipeline
	log      zerolog.Logger
}

// New creates a Guard around the given pipeline.
func New(s store.Store, p *intake.Pipeline, log zerolog.Logger) *Guard {
	return &Guard{store: s, pipeline: p, log: log}
}

// IngestStatement runs guarded statement intake. rawPayload is the exact
// request body; its fingerprint short-circuits byte-identical redeliveries.
func (g *Guard) IngestStatement(ctx context.Context, orgID string, rawPayload []byte, payload *intake.StatementPayload) (json.RawMessage, error) {
	return g.execute(ctx, orgID, payload.DocumentID, payload.ExtractionRunID, rawPayload,
		func(ctx context.Context) (interface{}, error) {
			return g.pipeline.IngestStatement(ctx, orgID, payload)
		})
}

// IngestApplication runs guarded application intake.
func (g *Guard) IngestApplication(ctx context.Context, orgID string, rawPayload []byte, payload *intake.ApplicationPayload) (json.RawMessage, error) {
	return g.execute(ctx, orgID, payload.DocumentID, payload.ExtractionRunID, rawPayload,
		func(ctx context.Context) (interface{}, error) {
			return g.pipeline.IngestApplication(ctx, orgID, payload)
		})
}

func (g *Guard) execute(ctx context.Context, orgID, docID, runID string, rawPayload []byte, run func(context.Context) (interface{}, error)) (json.RawMessage, error) {
	if docID == "" {
		return nil, fault.NewValidation("document_id", "document id is required")
	}
	if runID == "" {
		return nil, fault.NewValidation("extraction_run_id", "extraction run id is required")
	}

	// Exact unit already processed: silent success with the prior result.
	receipt, err := g.store.FindReceipt(ctx, orgID, docID, runID)
	if err != nil {
		return nil, &fault.TransientError{Op: "find receipt", Err: err}
	}
	if receipt != nil && receipt.Status == model.ReceiptSucceeded {
		g.log.Info().
			Str("document_id", docID).
			Str("extraction_run_id", runID).
			Msg("Replaying stored intake result")
		return json.RawMessage(receipt.ResultJSON), nil
	}

	// Byte-identical payload under a different run id: nothing new to
	// process, replay and record a receipt for this run too. A failed lookup
	// here only costs the short-circuit; processing proceeds.
	fingerprint := hashing.FingerprintPayload(rawPayload)
	prior, err := g.store.FindSucceededReceiptByFingerprint(ctx, orgID, docID, fingerprint)
	if err != nil {
		g.log.Warn().Err(err).
			Str("document_id", docID).
			Msg("Fingerprint lookup failed, processing without short-circuit")
	} else if prior != nil {
		g.log.Info().
			Str("document_id", docID).
			Str("extraction_run_id", runID).
			Msg("Identical payload fingerprint, replaying prior result")
		g.saveReceipt(ctx, orgID, docID, runID, fingerprint, model.ReceiptSucceeded, prior.ResultJSON, "")
		return json.RawMessage(prior.ResultJSON), nil
	}

	result, err := g.runWithRetry(ctx, run)
	if err != nil {
		g.saveReceipt(ctx, orgID, docID, runID, fingerprint, model.ReceiptFailed, "", err.Error())
		return nil, err
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("idempotency: marshal result: %w", err)
	}

	g.saveReceipt(ctx, orgID, docID, runID, fingerprint, model.ReceiptSucceeded, string(resultJSON), "")
	return resultJSON, nil
}

// runWithRetry retries the pipeline on transient store failures only.
// Validation and conflict errors are terminal: retrying cannot fix a payload
// or a logic bug.
func (g *Guard) runWithRetry(ctx context.Context, run func(context.Context) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := run(ctx)
		if err == nil {
			return result, nil
		}

		var verr *fault.ValidationError
		var cerr *fault.ConflictError
		if errors.As(err, &verr) || errors.As(err, &cerr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, &fault.TransientError{Op: "intake", Err: err}
		}

		lastErr = err
		if attempt < maxAttempts {
			g.log.Warn().Err(err).Int("attempt", attempt).Msg("Intake attempt failed, retrying")
			select {
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, &fault.TransientError{Op: "intake", Err: ctx.Err()}
			}
		}
	}
	return nil, &fault.TransientError{Op: "intake", Err: lastErr}
}

// saveReceipt records the outcome. Receipt persistence failing never masks
// the intake outcome itself; it only costs a replay on the next retry.
func (g *Guard) saveReceipt(ctx context.Context, orgID, docID, runID, fingerprint string, status model.ReceiptStatus, resultJSON, errMsg string) {
	receipt := &model.IntakeReceipt{
		OrganizationID:     orgID,
		DocumentID:         docID,
		ExtractionRunID:    runID,
		PayloadFingerprint: fingerprint,
		Status:             status,
		ResultJSON:         resultJSON,
		ErrorMessage:       errMsg,
	}
	if err := g.store.SaveReceipt(ctx, receipt); err != nil {
		g.log.Error().Err(err).
			Str("document_id", docID).
			Str("extraction_run_id", runID).
			Msg("Failed to save intake receipt")
	}
}
