package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"assura/internal/policy/models"
	id "assura/pkg/domain"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
	txcontext "assura/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists policies and their transition audit trail.
//
// All methods pick their executor from context so calls made inside a
// tx.Runner unit of work share one transaction; outside a transaction they
// run against the pool directly.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const policyColumns = `
	id, tenant_id, client_id, agent_id, created_by,
	policy_number, product_category, product_name, insurer_name, insurer_policy_ref,
	sum_assured, monthly_premium, premium_frequency, collection_method, escalation_rate,
	inception_date, expiry_date,
	initial_commission_pct, renewal_commission_pct,
	status, lapse_date, cancellation_date, cancellation_reason,
	clawback_watch_until, activated_at,
	created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Policy) error {
	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.TenantID), uuid.UUID(p.ClientID), uuid.UUID(p.AgentID), uuid.UUID(p.CreatedBy),
		p.PolicyNumber, string(p.ProductCategory), p.ProductName, p.InsurerName, nullString(p.InsurerPolicyRef),
		int64(p.SumAssured), int64(p.MonthlyPremium), string(p.PremiumFrequency), string(p.CollectionMethod), p.EscalationRate,
		p.InceptionDate, p.ExpiryDate,
		p.InitialCommissionPct, p.RenewalCommissionPct,
		string(p.Status), p.LapseDate, p.CancellationDate, nullString(p.CancellationReason),
		p.ClawbackWatchUntil, p.ActivatedAt,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	return s.findByID(ctx, tenantID, policyID, false)
}

// FindByIDForUpdate takes a row lock. Only meaningful inside a transaction;
// concurrent transitions on the same policy queue on this lock and re-validate
// against the committed status once they acquire it.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	return s.findByID(ctx, tenantID, policyID, true)
}

func (s *PostgresStore) findByID(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, forUpdate bool) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(policyID), uuid.UUID(tenantID))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Policy) error {
	query := `
		UPDATE policies SET
			product_name = $3, insurer_name = $4, insurer_policy_ref = $5,
			sum_assured = $6, monthly_premium = $7,
			premium_frequency = $8, collection_method = $9, escalation_rate = $10,
			inception_date = $11, expiry_date = $12,
			initial_commission_pct = $13, renewal_commission_pct = $14,
			status = $15, lapse_date = $16, cancellation_date = $17, cancellation_reason = $18,
			clawback_watch_until = $19, activated_at = $20, updated_at = $21
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.TenantID),
		p.ProductName, p.InsurerName, nullString(p.InsurerPolicyRef),
		int64(p.SumAssured), int64(p.MonthlyPremium),
		string(p.PremiumFrequency), string(p.CollectionMethod), p.EscalationRate,
		p.InceptionDate, p.ExpiryDate,
		p.InitialCommissionPct, p.RenewalCommissionPct,
		string(p.Status), p.LapseDate, p.CancellationDate, nullString(p.CancellationReason),
		p.ClawbackWatchUntil, p.ActivatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE policies SET deleted_at = $3 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		uuid.UUID(policyID), uuid.UUID(tenantID), now,
	)
	if err != nil {
		return fmt.Errorf("soft delete policy: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND ($2::uuid IS NULL OR client_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::text IS NULL OR product_category = $4)
		ORDER BY created_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query,
		uuid.UUID(tenantID),
		nullUUID(uuid.UUID(filter.ClientID)),
		nullString(string(filter.Status)),
		nullString(string(filter.ProductCategory)),
	)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return collectPolicies(rows)
}

func (s *PostgresStore) RenewalsDue(ctx context.Context, tenantID id.TenantID, now time.Time, daysAhead int) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND status IN ('active', 'reinstated')
		  AND expiry_date IS NOT NULL
		  AND expiry_date >= $2
		  AND expiry_date <= $2 + make_interval(days => $3)
		ORDER BY expiry_date ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), now, daysAhead)
	if err != nil {
		return nil, fmt.Errorf("renewals due: %w", err)
	}
	return collectPolicies(rows)
}

func (s *PostgresStore) ClawbackWatchActive(ctx context.Context, tenantID id.TenantID, now time.Time) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND clawback_watch_until IS NOT NULL
		  AND clawback_watch_until > $2
		ORDER BY clawback_watch_until ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), now)
	if err != nil {
		return nil, fmt.Errorf("clawback watch: %w", err)
	}
	return collectPolicies(rows)
}

func (s *PostgresStore) AppendTransition(ctx context.Context, rec models.TransitionRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO policy_transitions (policy_id, tenant_id, from_status, to_status, actor_id, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(rec.PolicyID), uuid.UUID(rec.TenantID),
		string(rec.FromStatus), string(rec.ToStatus),
		uuid.UUID(rec.ActorID), nullString(rec.Reason), rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) Transitions(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.TransitionRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT policy_id, tenant_id, from_status, to_status, actor_id, reason, occurred_at
		FROM policy_transitions
		WHERE policy_id = $1 AND tenant_id = $2
		ORDER BY occurred_at ASC`,
		uuid.UUID(policyID), uuid.UUID(tenantID),
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []models.TransitionRecord
	for rows.Next() {
		var (
			rec                  models.TransitionRecord
			policyID, tenantID   uuid.UUID
			actorID              uuid.UUID
			fromStatus, toStatus string
			reason               sql.NullString
		)
		if err := rows.Scan(&policyID, &tenantID, &fromStatus, &toStatus, &actorID, &reason, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.PolicyID = id.PolicyID(policyID)
		rec.TenantID = id.TenantID(tenantID)
		rec.FromStatus = models.Status(fromStatus)
		rec.ToStatus = models.Status(toStatus)
		rec.ActorID = id.UserID(actorID)
		rec.Reason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		p                                       models.Policy
		policyID, tenantID, clientID            uuid.UUID
		agentID, createdBy                      uuid.UUID
		insurerRef, cancellationReason          sql.NullString
		productCategory, frequency, collection  string
		status                                  string
		sumAssured, monthlyPremium              int64
	)
	err := row.Scan(
		&policyID, &tenantID, &clientID, &agentID, &createdBy,
		&p.PolicyNumber, &productCategory, &p.ProductName, &p.InsurerName, &insurerRef,
		&sumAssured, &monthlyPremium, &frequency, &collection, &p.EscalationRate,
		&p.InceptionDate, &p.ExpiryDate,
		&p.InitialCommissionPct, &p.RenewalCommissionPct,
		&status, &p.LapseDate, &p.CancellationDate, &cancellationReason,
		&p.ClawbackWatchUntil, &p.ActivatedAt,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.TenantID = id.TenantID(tenantID)
	p.ClientID = id.ClientID(clientID)
	p.AgentID = id.UserID(agentID)
	p.CreatedBy = id.UserID(createdBy)
	p.InsurerPolicyRef = insurerRef.String
	p.CancellationReason = cancellationReason.String
	p.ProductCategory = models.ProductCategory(productCategory)
	p.PremiumFrequency = models.PremiumFrequency(frequency)
	p.CollectionMethod = models.CollectionMethod(collection)
	p.Status = models.Status(status)
	p.SumAssured = money.Cents(sumAssured)
	p.MonthlyPremium = money.Cents(monthlyPremium)
	return &p, nil
}

func collectPolicies(rows *sql.Rows) ([]*models.Policy, error) {
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsSerializationFailure reports a transaction that lost a concurrency race
// and should be retried after re-reading current state.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && (pqErr.Code == "40001" || pqErr.Code == "40P01")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
