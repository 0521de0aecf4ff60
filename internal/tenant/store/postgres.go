package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assura/internal/tenant/models"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
	"assura/pkg/platform/tx"
)

const tenantColumns = `id, name, status, created_at, updated_at`

// PostgresStore persists tenants in the tenants table.
type PostgresStore struct {
	pool *sql.DB
}

func NewPostgresStore(pool *sql.DB) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) execer(ctx context.Context) interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Tenant) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID.String(), t.Name, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1`,
		tenantID.String(),
	)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE status = $1
		ORDER BY name`,
		string(models.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		t      models.Tenant
		rawID  string
		status string
	)
	if err := row.Scan(&rawID, &t.Name, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	tid, err := id.ParseTenantID(rawID)
	if err != nil {
		return nil, err
	}
	t.ID = tid
	t.Status = models.Status(status)
	return &t, nil
}
