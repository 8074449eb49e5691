package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dabananda/secure-account-api/internal/core/domain"
	"github.com/dabananda/secure-account-api/internal/core/port"
	"github.com/dabananda/secure-account-api/internal/repository"
)

var tokenColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"purpose",
	"created_at",
	"expires_at",
	"used_at",
	"metadata",
}

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a new token repository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new purpose token record.
func (r *TokenRepository) Create(ctx context.Context, token domain.PurposeToken) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("prepare token metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert("identity.purpose_tokens").
		Columns(tokenColumns...).
		Values(
			token.ID,
			token.AccountID,
			token.TokenHash,
			token.Purpose,
			token.CreatedAt,
			token.ExpiresAt,
			token.UsedAt,
			metadata,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert purpose token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert purpose token: %w", err)
	}

	return nil
}

// Redeem atomically consumes an unexpired, unused token bound to the given
// account and purpose. The conditional update is the serialization point: of N
// concurrent redemptions exactly one observes used_at IS NULL and wins. When
// the update matches no row, a diagnostic lookup classifies the failure.
func (r *TokenRepository) Redeem(ctx context.Context, tokenHash, accountID string, purpose domain.TokenPurpose, now time.Time) (*domain.PurposeToken, error) {
	now = now.UTC()

	stmt, args, err := r.builder.Update("identity.purpose_tokens").
		Set("used_at", now).
		Where(squirrel.Eq{
			"token_hash": tokenHash,
			"account_id": accountID,
			"purpose":    purpose,
		}).
		Where("used_at IS NULL").
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING " + columnList(tokenColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build redeem token sql: %w", err)
	}

	token, err := scanToken(r.exec.QueryRow(ctx, stmt, args...))
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("redeem purpose token: %w", err)
	}

	return nil, r.classifyRedeemFailure(ctx, tokenHash, accountID, purpose, now)
}

func (r *TokenRepository) classifyRedeemFailure(ctx context.Context, tokenHash, accountID string, purpose domain.TokenPurpose, now time.Time) error {
	stmt, args, err := r.builder.Select(tokenColumns...).
		From("identity.purpose_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build token lookup sql: %w", err)
	}

	token, err := scanToken(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lookup purpose token: %w", err)
	}

	switch {
	case token.AccountID != accountID || token.Purpose != purpose:
		return repository.ErrTokenPurposeMismatch
	case token.UsedAt != nil:
		return repository.ErrTokenConsumed
	case token.IsExpired(now):
		return repository.ErrTokenExpired
	default:
		// The row satisfied every predicate on re-read; another writer raced us.
		return repository.ErrTokenConsumed
	}
}

// DeleteExpired evicts tokens whose expiry predates the cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("identity.purpose_tokens").
		Where(squirrel.LtOrEq{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func scanToken(row pgx.Row) (*domain.PurposeToken, error) {
	var (
		token    domain.PurposeToken
		usedAt   sql.NullTime
		metadata []byte
	)

	if err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.Purpose,
		&token.CreatedAt,
		&token.ExpiresAt,
		&usedAt,
		&metadata,
	); err != nil {
		return nil, err
	}

	if usedAt.Valid {
		at := usedAt.Time
		token.UsedAt = &at
	}

	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	token.Metadata = meta

	return &token, nil
}

func columnList(columns []string) string {
	out := ""
	for i, column := range columns {
		if i > 0 {
			out += ", "
		}
		out += column
	}
	return out
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}

func unmarshalMetadata(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
