package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jkuat-robotics/printdesk/internal/types"
)

type Database struct {
	pool *pgxpool.Pool
}

func NewDatabase(connString string) (*Database, error) {

	err := Migrate(connString)

	if err != nil {
		return nil, fmt.Errorf("failed to migrate %w", err)
	}

	ctx := context.Background()
	p, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	return &Database{
		pool: p,
	}, nil
}

func (d *Database) CreateOrder(ctx context.Context, order types.Order) error {

	query := `
		INSERT INTO print_order (filename, local_path, mimetype, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		`
	_, err := d.pool.Exec(ctx, query,
		order.Filename, order.LocalPath, order.Mimetype, order.Email, order.Phone, types.PendingStatus)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return fmt.Errorf("%w", &OrderExistsError{Filename: order.Filename})
		}
		return err
	}
	return nil
}

func (d *Database) GetOrder(ctx context.Context, filename string) (*types.Order, error) {
	query := `
		SELECT id, filename, local_path, mimetype, email, phone, paid, status,
		       storage_url, mpesa_receipt, checkout_request_id, failure_reason,
		       collection_deadline, created_at, updated_at
		FROM print_order
		WHERE filename = $1`

	rows, err := d.pool.Query(ctx, query, filename)
	if err != nil {
		return nil, fmt.Errorf("failed collecting rows %w", err)
	}

	order, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[types.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w", &OrderNotFoundError{Filename: filename})
		}
		return nil, fmt.Errorf("failed unpacking rows %w", err)
	}
	return &order, nil
}

func (d *Database) GetOrders(ctx context.Context) ([]types.Order, error) {
	query := `
		SELECT id, filename, local_path, mimetype, email, phone, paid, status,
		       storage_url, mpesa_receipt, checkout_request_id, failure_reason,
		       collection_deadline, created_at, updated_at
		FROM print_order
		ORDER BY id DESC
		LIMIT 1000`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed collecting rows %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.Order])
	if err != nil {
		return nil, fmt.Errorf("failed unpacking rows %w", err)
	}
	return orders, nil
}

// DeleteOrder rolls back a just-created order after a failed payment
// initiation.
func (d *Database) DeleteOrder(ctx context.Context, filename string) error {
	query := `
		DELETE FROM print_order
		WHERE filename = $1`

	_, err := d.pool.Exec(ctx, query, filename)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// ClaimPendingOrder atomically moves a pending order into the archiving
// state, recording the gateway correlation fields. A callback that arrives
// for an order that is no longer pending gets ErrOrderNotPending, which is
// what makes reconciliation at-most-once.
func (d *Database) ClaimPendingOrder(ctx context.Context, filename string, receipt string, checkoutRequestID string) error {
	query := `
		UPDATE print_order
		SET status = $1, mpesa_receipt = $2, checkout_request_id = $3, updated_at = now()
		WHERE filename = $4 AND status = $5
		RETURNING id`

	row := d.pool.QueryRow(ctx, query,
		types.ArchivingStatus, receipt, checkoutRequestID, filename, types.PendingStatus)

	var id int
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w", ErrOrderNotPending)
		}
		return fmt.Errorf("unexpected DB error %w", err)
	}
	return nil
}

// MarkOrderUploaded finishes the success path: paid and uploaded are set
// together, only from the archiving state.
func (d *Database) MarkOrderUploaded(ctx context.Context, filename string, storageURL string, deadline time.Time) error {
	query := `
		UPDATE print_order
		SET paid = TRUE, status = $1, storage_url = $2, collection_deadline = $3, updated_at = now()
		WHERE filename = $4 AND status = $5
		RETURNING id`

	row := d.pool.QueryRow(ctx, query,
		types.UploadedStatus, storageURL, deadline, filename, types.ArchivingStatus)

	var id int
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w", ErrOrderNotPending)
		}
		return fmt.Errorf("unexpected DB error %w", err)
	}
	return nil
}

func (d *Database) MarkOrderFailed(ctx context.Context, filename string, reason string, checkoutRequestID string) error {
	query := `
		UPDATE print_order
		SET paid = FALSE, status = $1, failure_reason = $2, checkout_request_id = $3, updated_at = now()
		WHERE filename = $4 AND status = $5
		RETURNING id`

	row := d.pool.QueryRow(ctx, query,
		types.PaymentFailedStatus, reason, checkoutRequestID, filename, types.PendingStatus)

	var id int
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w", ErrOrderNotPending)
		}
		return fmt.Errorf("unexpected DB error %w", err)
	}
	return nil
}

// GetStuckArchivingOrders returns orders claimed by a success callback whose
// archive sequence never completed (crash or storage failure mid-way).
func (d *Database) GetStuckArchivingOrders(ctx context.Context, olderThan time.Duration) ([]types.Order, error) {
	query := `
		SELECT id, filename, local_path, mimetype, email, phone, paid, status,
		       storage_url, mpesa_receipt, checkout_request_id, failure_reason,
		       collection_deadline, created_at, updated_at
		FROM print_order
		WHERE status = $1 AND updated_at < $2
		ORDER BY id
		LIMIT 100`

	rows, err := d.pool.Query(ctx, query, types.ArchivingStatus, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed collecting rows %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.Order])
	if err != nil {
		return nil, fmt.Errorf("failed unpacking rows %w", err)
	}
	return orders, nil
}

func (d *Database) Close() {
	d.pool.Close()
}
