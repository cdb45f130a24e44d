package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/mylogger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	uniqueViolation = "23505"
	actionAttempts  = 3
)

// ProcessWithDeduplication runs action at most once per eventID. The
// processed_events row and everything action writes through the ctx it is
// given commit together; each attempt runs in its own savepoint, so a failed
// attempt leaves nothing behind. Returns false when the event had already
// been processed.
func ProcessWithDeduplication(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	eventID int64,
	retryDelay time.Duration,
	action func(ctx context.Context) error,
) (bool, error) {
	span := trace.SpanFromContext(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin dedup transaction: %w", err)
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(cleanupCtx, logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	query := `
		INSERT INTO processed_events (event_id)
		VALUES ($1)
	`

	if _, err := tx.Exec(ctx, query, eventID); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			mylogger.Info(ctx, logger, "Event already processed, skipping", zap.Int64("event_id", eventID))
			return false, nil
		}

		span.RecordError(err)
		return false, err
	}

	for attempt := 1; ; attempt++ {
		err = runAttempt(ctx, tx, action)
		if err == nil {
			break
		}

		if attempt == actionAttempts {
			mylogger.Error(ctx, logger, "Event action failed after retries", zap.Int64("event_id", eventID), zap.Error(err))
			return false, fmt.Errorf("event %d: %w", eventID, err)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, logger, "Failed to commit dedup transaction", zap.Error(err))

		return false, fmt.Errorf("failed to commit dedup transaction: %w", err)
	}

	return true, nil
}

func runAttempt(ctx context.Context, tx pgx.Tx, action func(ctx context.Context) error) error {
	savepoint, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if err := action(db.WithTx(ctx, savepoint)); err != nil {
		rbErr := savepoint.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return savepoint.Commit(ctx)
}
