package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
)

const pqUniqueViolation = "23505"

type OpsRepo struct {
	db *sql.DB
}

func NewOpsRepo(db *sql.DB) *OpsRepo { return &OpsRepo{db: db} }

// Create relies on the partial unique index over active operations: losing
// the race to another scheduler is expected and maps to
// ops.ErrActiveOperationExists.
func (r *OpsRepo) Create(ctx context.Context, op ops.Operation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mutation_operations
			(id, provider_operation_id, catalog_item_id, provider, listing_id,
			 kind, amount, currency, status, failure_reason, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, op.ID, op.ProviderOperationID, op.CatalogItemID, op.Provider, op.ListingID,
		op.Kind, op.Amount, op.Currency, op.Status, op.FailureReason, op.Attempts, op.CreatedAt.UTC())
	if err != nil {
		var pqe *pq.Error
		if errors.As(err, &pqe) && string(pqe.Code) == pqUniqueViolation {
			return ops.ErrActiveOperationExists
		}
		return fmt.Errorf("create operation: %w", err)
	}
	return nil
}

func (r *OpsRepo) OperationByID(ctx context.Context, id uuid.UUID) (ops.Operation, error) {
	row := r.db.QueryRowContext(ctx, opSelect+` WHERE id = $1`, id)
	return scanOp(row)
}

const opSelect = `
	SELECT id, provider_operation_id, catalog_item_id, provider, listing_id,
	       kind, amount, currency, status, failure_reason, attempts,
	       created_at, last_polled_at, completed_at
	FROM mutation_operations`

// Pollable returns non-terminal operations not polled within minInterval,
// oldest first so stuck operations hit timeout detection before fresh ones.
func (r *OpsRepo) Pollable(ctx context.Context, now time.Time, minInterval time.Duration, limit int) ([]ops.Operation, error) {
	rows, err := r.db.QueryContext(ctx, opSelect+`
		WHERE status IN ('pending','processing')
		  AND (last_polled_at IS NULL OR last_polled_at <= $1)
		ORDER BY created_at
		LIMIT $2
	`, now.UTC().Add(-minInterval), limit)
	if err != nil {
		return nil, fmt.Errorf("pollable operations: %w", err)
	}
	defer rows.Close()

	var out []ops.Operation
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanOp(s scanner) (ops.Operation, error) {
	var op ops.Operation
	err := s.Scan(&op.ID, &op.ProviderOperationID, &op.CatalogItemID, &op.Provider,
		&op.ListingID, &op.Kind, &op.Amount, &op.Currency, &op.Status,
		&op.FailureReason, &op.Attempts, &op.CreatedAt, &op.LastPolledAt, &op.CompletedAt)
	if err != nil {
		return ops.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	return op, nil
}

func (r *OpsRepo) SetProviderOperation(ctx context.Context, id uuid.UUID, providerOpID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mutation_operations SET provider_operation_id = $2 WHERE id = $1
	`, id, providerOpID)
	if err != nil {
		return fmt.Errorf("set provider operation: %w", err)
	}
	return nil
}

func (r *OpsRepo) MarkPolled(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mutation_operations
		SET last_polled_at = $2, attempts = attempts + 1
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark polled: %w", err)
	}
	return nil
}

func (r *OpsRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mutation_operations SET status = 'processing'
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// Finish is the only path into a terminal status. The WHERE clause makes it
// conditional: a second finish of the same operation changes nothing and
// reports false.
func (r *OpsRepo) Finish(ctx context.Context, id uuid.UUID, status ops.Status, reason string, listingID *string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mutation_operations
		SET status = $2, failure_reason = $3,
		    listing_id = COALESCE($4, listing_id),
		    completed_at = $5
		WHERE id = $1 AND status IN ('pending','processing')
	`, id, status, reason, listingID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("finish operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var _ ops.Repo = (*OpsRepo)(nil)
