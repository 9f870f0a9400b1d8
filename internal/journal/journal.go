// Package journal persists the write path: every transaction submission and
// its terminal outcome.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"curvebot/internal/observability"
)

// ErrDuplicateSignature reports an insert for an already-journaled signature.
var ErrDuplicateSignature = errors.New("journal: duplicate signature")

// ErrNotFound reports a lookup or update for an unknown signature.
var ErrNotFound = errors.New("journal: submission not found")

// Status is the lifecycle state of a submission.
type Status string

// Submission statuses. A submission starts as StatusSubmitted and ends in
// exactly one of the terminal states.
const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusTimeout   Status = "timeout"
)

// Submission is one journaled transaction submission.
type Submission struct {
	ID        int64
	Signature string
	Mint      string
	Side      string
	Amount    float64
	Status    Status
	TxError   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

const pgErrUniqueViolation = "23505"

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// Store persists submissions in PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Insert journals a new submission. Returns ErrDuplicateSignature when the
// signature was already recorded.
func (s *Store) Insert(ctx context.Context, sub *Submission) error {
	start := time.Now()
	err := s.insert(ctx, sub)
	observability.RecordJournalQuery("insert", time.Since(start).Seconds(), err)
	return err
}

func (s *Store) insert(ctx context.Context, sub *Submission) error {
	query := `
		INSERT INTO submissions (signature, mint, side, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		sub.Signature,
		sub.Mint,
		sub.Side,
		sub.Amount,
		sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateSignature
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// MarkOutcome moves a submission to a terminal status. An empty txErr clears
// the error column.
func (s *Store) MarkOutcome(ctx context.Context, signature string, status Status, txErr string) error {
	start := time.Now()
	err := s.markOutcome(ctx, signature, status, txErr)
	observability.RecordJournalQuery("mark_outcome", time.Since(start).Seconds(), err)
	return err
}

func (s *Store) markOutcome(ctx context.Context, signature string, status Status, txErr string) error {
	query := `
		UPDATE submissions
		SET status = $2, tx_error = NULLIF($3, ''), updated_at = now()
		WHERE signature = $1
	`

	tag, err := s.pool.Exec(ctx, query, signature, status, txErr)
	if err != nil {
		return fmt.Errorf("update submission outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBySignature retrieves one submission.
func (s *Store) GetBySignature(ctx context.Context, signature string) (*Submission, error) {
	start := time.Now()
	sub, err := s.getBySignature(ctx, signature)
	observability.RecordJournalQuery("get_by_signature", time.Since(start).Seconds(), err)
	return sub, err
}

func (s *Store) getBySignature(ctx context.Context, signature string) (*Submission, error) {
	query := `
		SELECT id, signature, mint, side, amount, status, tx_error, created_at, updated_at
		FROM submissions
		WHERE signature = $1
	`

	var sub Submission
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&sub.ID,
		&sub.Signature,
		&sub.Mint,
		&sub.Side,
		&sub.Amount,
		&sub.Status,
		&sub.TxError,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// ListRecent retrieves the most recently created submissions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Submission, error) {
	start := time.Now()
	subs, err := s.listRecent(ctx, limit)
	observability.RecordJournalQuery("list_recent", time.Since(start).Seconds(), err)
	return subs, err
}

func (s *Store) listRecent(ctx context.Context, limit int) ([]*Submission, error) {
	query := `
		SELECT id, signature, mint, side, amount, status, tx_error, created_at, updated_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		var sub Submission
		err := rows.Scan(
			&sub.ID,
			&sub.Signature,
			&sub.Mint,
			&sub.Side,
			&sub.Amount,
			&sub.Status,
			&sub.TxError,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, nil
}
