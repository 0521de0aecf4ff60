package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assura/internal/client/models"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
	"assura/pkg/platform/tx"
)

const clientColumns = `id, tenant_id, first_name, last_name, email, phone, created_at, updated_at, deleted_at`

// PostgresStore persists clients in the clients table.
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

func (s *PostgresStore) Create(ctx context.Context, c *models.Client) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)`,
		c.ID.String(), c.TenantID.String(), c.FirstName, c.LastName,
		c.Email, c.Phone, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (*models.Client, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		clientID.String(), tenantID.String(),
	)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	return c, nil
}

// Exists reports whether the client is visible inside the tenant scope.
func (s *PostgresStore) Exists(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (bool, error) {
	var found bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clients
			WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		)`,
		clientID.String(), tenantID.String(),
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("client exists: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID) ([]*models.Client, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY last_name, first_name`,
		tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		c            models.Client
		rawID, rawTn string
		email, phone sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(&rawID, &rawTn, &c.FirstName, &c.LastName, &email, &phone,
		&c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	cid, err := id.ParseClientID(rawID)
	if err != nil {
		return nil, err
	}
	tid, err := id.ParseTenantID(rawTn)
	if err != nil {
		return nil, err
	}
	c.ID = cid
	c.TenantID = tid
	c.Email = email.String
	c.Phone = phone.String
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}
