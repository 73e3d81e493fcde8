package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tripsplit/internal/domain"
)

// PaymentRepository is the postgres-backed Store.
type PaymentRepository struct {
	db *sql.DB
}

var _ Store = (*PaymentRepository)(nil)

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Close() error {
	return r.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx so the scan helpers
// can run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *domain.PaymentRequest) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	p.SplitCount = len(p.ParticipantIDs)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, trip_id, description, amount, currency, created_by, split_count, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.TripID, p.Description, p.Amount.Amount, p.Amount.Currency,
		p.CreatedBy, p.SplitCount, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := insertParticipants(ctx, tx, p.ID, p.ParticipantIDs); err != nil {
		return err
	}
	if err := insertMethods(ctx, tx, p.ID, p.Methods); err != nil {
		return err
	}

	for i := range p.Splits {
		s := &p.Splits[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.PaymentID = p.ID
		s.Version = 1
		s.UpdatedAt = now
		if err := insertSplit(ctx, tx, s); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertParticipants(ctx context.Context, q querier, paymentID string, memberIDs []string) error {
	for i, id := range memberIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO payment_participants (payment_id, member_id, position) VALUES ($1, $2, $3)",
			paymentID, id, i,
		); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func insertMethods(ctx context.Context, q querier, paymentID string, methods []string) error {
	for i, m := range methods {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO payment_methods (payment_id, position, method) VALUES ($1, $2, $3)",
			paymentID, i, m,
		); err != nil {
			return fmt.Errorf("insert method: %w", err)
		}
	}
	return nil
}

func insertSplit(ctx context.Context, q querier, s *domain.PaymentSplit) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO payment_splits (id, payment_id, debtor_id, amount_owed, currency, settled, settled_at, method, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.PaymentID, s.DebtorID, s.AmountOwed.Amount, s.AmountOwed.Currency,
		s.Settled, s.SettledAt, s.Method, s.Version, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert split: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	return getPayment(ctx, r.db, id)
}

func getPayment(ctx context.Context, q querier, id string) (*domain.PaymentRequest, error) {
	p := &domain.PaymentRequest{}
	err := q.QueryRowContext(ctx,
		`SELECT id, trip_id, description, amount, currency, created_by, split_count, version, created_at, updated_at
		 FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.TripID, &p.Description, &p.Amount.Amount, &p.Amount.Currency,
		&p.CreatedBy, &p.SplitCount, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}

	if err := loadChildren(ctx, q, p); err != nil {
		return nil, err
	}
	return p, nil
}

func loadChildren(ctx context.Context, q querier, p *domain.PaymentRequest) error {
	rows, err := q.QueryContext(ctx,
		"SELECT member_id FROM payment_participants WHERE payment_id = $1 ORDER BY position", p.ID)
	if err != nil {
		return fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		p.ParticipantIDs = append(p.ParticipantIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate participants: %w", err)
	}

	methodRows, err := q.QueryContext(ctx,
		"SELECT method FROM payment_methods WHERE payment_id = $1 ORDER BY position", p.ID)
	if err != nil {
		return fmt.Errorf("get methods: %w", err)
	}
	defer methodRows.Close()
	for methodRows.Next() {
		var m string
		if err := methodRows.Scan(&m); err != nil {
			return fmt.Errorf("scan method: %w", err)
		}
		p.Methods = append(p.Methods, m)
	}
	if err := methodRows.Err(); err != nil {
		return fmt.Errorf("iterate methods: %w", err)
	}

	splits, err := loadSplits(ctx, q, p.ID)
	if err != nil {
		return err
	}
	p.Splits = splits
	return nil
}

func loadSplits(ctx context.Context, q querier, paymentID string) ([]domain.PaymentSplit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, payment_id, debtor_id, amount_owed, currency, settled, settled_at, method, version, updated_at
		 FROM payment_splits WHERE payment_id = $1 ORDER BY debtor_id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get splits: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentSplit
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate splits: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSplit(row rowScanner) (*domain.PaymentSplit, error) {
	s := &domain.PaymentSplit{}
	var settledAt sql.NullTime
	var method sql.NullString
	if err := row.Scan(&s.ID, &s.PaymentID, &s.DebtorID, &s.AmountOwed.Amount, &s.AmountOwed.Currency,
		&s.Settled, &settledAt, &method, &s.Version, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan split: %w", err)
	}
	if settledAt.Valid {
		t := settledAt.Time
		s.SettledAt = &t
	}
	if method.Valid {
		m := method.String
		s.Method = &m
	}
	return s, nil
}

func (r *PaymentRepository) ListByTrip(ctx context.Context, tripID string) ([]domain.PaymentRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, description, amount, currency, created_by, split_count, version, created_at, updated_at
		 FROM payments WHERE trip_id = $1 ORDER BY created_at DESC, id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentRequest
	for rows.Next() {
		var p domain.PaymentRequest
		if err := rows.Scan(&p.ID, &p.TripID, &p.Description, &p.Amount.Amount, &p.Amount.Currency,
			&p.CreatedBy, &p.SplitCount, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}

	for i := range out {
		if err := loadChildren(ctx, r.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *domain.PaymentRequest, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET description = $1, amount = $2, currency = $3, split_count = $4, version = version + 1, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		p.Description, p.Amount.Amount, p.Amount.Currency, len(p.ParticipantIDs), now, p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n == 0 {
		// Stale version or concurrent delete; surface the authoritative
		// record so the caller can decide.
		current, getErr := getPayment(ctx, r.db, p.ID)
		if getErr != nil {
			return getErr
		}
		return &domain.ConflictError{
			ExpectedVersion: expectedVersion,
			ActualVersion:   current.Version,
			Current:         current,
		}
	}

	// Rewrite participant and method lists.
	if _, err := tx.ExecContext(ctx, "DELETE FROM payment_participants WHERE payment_id = $1", p.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, p.ID, p.ParticipantIDs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM payment_methods WHERE payment_id = $1", p.ID); err != nil {
		return fmt.Errorf("clear methods: %w", err)
	}
	if err := insertMethods(ctx, tx, p.ID, p.Methods); err != nil {
		return err
	}

	// Reconcile splits: retained debtors keep their row (and settlement
	// state) with a recomputed amount, removed debtors are deleted, new
	// debtors get fresh rows.
	existing, err := loadSplits(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	byDebtor := make(map[string]*domain.PaymentSplit, len(existing))
	for i := range existing {
		byDebtor[existing[i].DebtorID] = &existing[i]
	}

	keep := make(map[string]bool, len(p.Splits))
	for i := range p.Splits {
		s := &p.Splits[i]
		keep[s.DebtorID] = true
		if old, ok := byDebtor[s.DebtorID]; ok {
			s.ID = old.ID
			s.PaymentID = p.ID
			s.Settled = old.Settled
			s.SettledAt = old.SettledAt
			s.Method = old.Method
			s.Version = old.Version + 1
			s.UpdatedAt = now
			if _, err := tx.ExecContext(ctx,
				`UPDATE payment_splits SET amount_owed = $1, currency = $2, version = $3, updated_at = $4 WHERE id = $5`,
				s.AmountOwed.Amount, s.AmountOwed.Currency, s.Version, now, s.ID,
			); err != nil {
				return fmt.Errorf("update split: %w", err)
			}
			continue
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.PaymentID = p.ID
		s.Version = 1
		s.UpdatedAt = now
		if err := insertSplit(ctx, tx, s); err != nil {
			return err
		}
	}
	for debtor, old := range byDebtor {
		if keep[debtor] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM payment_splits WHERE id = $1", old.ID); err != nil {
			return fmt.Errorf("delete split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.SplitCount = len(p.ParticipantIDs)
	p.Version = expectedVersion + 1
	p.UpdatedAt = now
	return nil
}

func (r *PaymentRepository) DeletePayment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepository) GetSplit(ctx context.Context, id string) (*domain.PaymentSplit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, payment_id, debtor_id, amount_owed, currency, settled, settled_at, method, version, updated_at
		 FROM payment_splits WHERE id = $1`, id)
	return scanSplit(row)
}

func (r *PaymentRepository) UpdateSplit(ctx context.Context, s *domain.PaymentSplit, expectedVersion int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_splits
		 SET settled = $1, settled_at = $2, method = $3, version = version + 1, updated_at = $4
		 WHERE id = $5 AND version = $6`,
		s.Settled, s.SettledAt, s.Method, now, s.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update split: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update split: %w", err)
	}
	if n == 0 {
		current, getErr := r.GetSplit(ctx, s.ID)
		if getErr != nil {
			return getErr
		}
		return &domain.ConflictError{
			ExpectedVersion: expectedVersion,
			ActualVersion:   current.Version,
			Current:         current,
		}
	}
	s.Version = expectedVersion + 1
	s.UpdatedAt = now
	return nil
}

func (r *PaymentRepository) CountByCreator(ctx context.Context, tripID, memberID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE trip_id = $1 AND created_by = $2",
		tripID, memberID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return count, nil
}
