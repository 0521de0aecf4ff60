package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"assura/internal/commission/models"
	id "assura/pkg/domain"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
	txcontext "assura/pkg/platform/tx"
)

// PostgresStore persists the immutable commission ledger. There is no update
// or delete path: the table carries only inserts, and the unique index on
// (policy_id, period_key) makes renewal posting idempotent across concurrent
// scheduler instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO commission_entries (
			id, tenant_id, policy_id, entry_type, amount, period_key,
			basis_premium, basis_pct, computed_on, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.TenantID), uuid.UUID(e.PolicyID),
		string(e.Type), int64(e.Amount), e.PeriodKey,
		int64(e.BasisPremium), e.BasisPct, e.ComputedOn, e.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert commission entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPolicy(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, tenant_id, policy_id, entry_type, amount, period_key,
		       basis_premium, basis_pct, computed_on, created_at
		FROM commission_entries
		WHERE tenant_id = $1 AND policy_id = $2
		ORDER BY created_at ASC`,
		uuid.UUID(tenantID), uuid.UUID(policyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list commission entries: %w", err)
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		var (
			e                          models.Entry
			entryID, tenantU, policyU  uuid.UUID
			entryType                  string
			amount, basisPremium       int64
		)
		err := rows.Scan(&entryID, &tenantU, &policyU, &entryType, &amount,
			&e.PeriodKey, &basisPremium, &e.BasisPct, &e.ComputedOn, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan commission entry: %w", err)
		}
		e.ID = id.EntryID(entryID)
		e.TenantID = id.TenantID(tenantU)
		e.PolicyID = id.PolicyID(policyU)
		e.Type = models.EntryType(entryType)
		e.Amount = money.Cents(amount)
		e.BasisPremium = money.Cents(basisPremium)
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
