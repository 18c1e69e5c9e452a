package property

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/propfin/svc/billing"
)

// PGStore is a Store backed by the properties table.
type PGStore struct {
	db billing.DBTX
}

func NewPGStore(db billing.DBTX) *PGStore {
	return &PGStore{db: db}
}

const propertyColumns = `id, user_id, name, address, purchase_price_cents, created_at, deleted_at`

func (s *PGStore) Create(ctx context.Context, p *Property) (*Property, error) {
	if p == nil || p.ID == uuid.Nil || p.UserID == uuid.Nil {
		return nil, ErrInvalidProperty
	}
	row := s.db.QueryRow(ctx, `INSERT INTO properties (id, user_id, name, address, purchase_price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+propertyColumns,
		p.ID, p.UserID, p.Name, p.Address, p.PurchasePriceCents, p.CreatedAt)
	created, err := scanProperty(row)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return created, nil
}

func (s *PGStore) List(ctx context.Context, userID uuid.UUID) ([]*Property, error) {
	rows, err := s.db.Query(ctx, `SELECT `+propertyColumns+` FROM properties
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PGStore) Delete(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE properties SET deleted_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID, at)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

func (s *PGStore) CountActive(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM properties
		WHERE user_id = $1 AND deleted_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return n, nil
}

func scanProperty(row pgx.Row) (*Property, error) {
	var p Property
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.PurchasePriceCents, &p.CreatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
