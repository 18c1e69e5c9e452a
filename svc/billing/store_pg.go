package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/propfin/pkg/pg"
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx used by the Postgres stores.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore is a Store backed by the subscriptions table.
type PGStore struct {
	db    DBTX
	clock Clock
}

// NewPGStore creates a Postgres-backed Store.
func NewPGStore(db DBTX, clock Clock) *PGStore {
	if clock == nil {
		clock = SystemClock
	}
	return &PGStore{db: db, clock: clock}
}

const subscriptionColumns = `user_id, external_customer_id, external_subscription_id, plan, status,
	property_limit, trial_ends_at, current_period_end, cancel_at_period_end,
	scheduled_plan, scheduled_plan_date, created_at, updated_at`

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
}

func (s *PGStore) GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error) {
	return s.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE external_subscription_id = $1`, subscriptionID)
}

func (s *PGStore) GetByExternalCustomerID(ctx context.Context, customerID string) (*Subscription, error) {
	return s.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE external_customer_id = $1`, customerID)
}

func (s *PGStore) getOne(ctx context.Context, query string, arg any) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return sub, nil
}

func (s *PGStore) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if sub == nil || sub.UserID == uuid.Nil {
		return nil, ErrInvalidSubscription
	}
	now := nextUpdatedAt(s.clock.Now(), time.Time{})
	row := s.db.QueryRow(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING `+subscriptionColumns,
		sub.UserID,
		nullString(sub.ExternalCustomerID),
		nullString(sub.ExternalSubscriptionID),
		string(sub.Plan),
		string(sub.Status),
		sub.PropertyLimit,
		sub.TrialEndsAt,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		planString(sub.ScheduledPlan),
		sub.ScheduledPlanDate,
		now,
	)
	created, err := scanSubscription(row)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, ErrSubscriptionExists
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return created, nil
}

// Update reads the row, applies the patch in memory and writes every mutable
// column back guarded by the updated_at value it read. A concurrent writer
// between the read and the write makes the guarded UPDATE match no row.
func (s *PGStore) Update(ctx context.Context, userID uuid.UUID, patch Patch, expectedUpdatedAt *time.Time) (*Subscription, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if expectedUpdatedAt != nil && !cur.UpdatedAt.Equal(*expectedUpdatedAt) {
		return nil, &ConflictError{UserID: userID, Expected: *expectedUpdatedAt, Actual: cur.UpdatedAt}
	}

	next := patch.Apply(cur)
	next.UpdatedAt = nextUpdatedAt(s.clock.Now(), cur.UpdatedAt)

	row := s.db.QueryRow(ctx, `UPDATE subscriptions SET
			external_customer_id = $2,
			external_subscription_id = $3,
			plan = $4,
			status = $5,
			property_limit = $6,
			trial_ends_at = $7,
			current_period_end = $8,
			cancel_at_period_end = $9,
			scheduled_plan = $10,
			scheduled_plan_date = $11,
			updated_at = $12
		WHERE user_id = $1 AND updated_at = $13
		RETURNING `+subscriptionColumns,
		userID,
		nullString(next.ExternalCustomerID),
		nullString(next.ExternalSubscriptionID),
		string(next.Plan),
		string(next.Status),
		next.PropertyLimit,
		next.TrialEndsAt,
		next.CurrentPeriodEnd,
		next.CancelAtPeriodEnd,
		planString(next.ScheduledPlan),
		next.ScheduledPlanDate,
		next.UpdatedAt,
		cur.UpdatedAt,
	)
	updated, err := scanSubscription(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			expected := cur.UpdatedAt
			if expectedUpdatedAt != nil {
				expected = *expectedUpdatedAt
			}
			return nil, &ConflictError{UserID: userID, Expected: expected}
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return updated, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub                  Subscription
		customerID, subID    *string
		plan, status         string
		scheduledPlan        *string
		trialEnds, periodEnd *time.Time
		scheduledDate        *time.Time
	)
	err := row.Scan(
		&sub.UserID,
		&customerID,
		&subID,
		&plan,
		&status,
		&sub.PropertyLimit,
		&trialEnds,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
		&scheduledPlan,
		&scheduledDate,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID != nil {
		sub.ExternalCustomerID = *customerID
	}
	if subID != nil {
		sub.ExternalSubscriptionID = *subID
	}
	sub.Plan = Plan(plan)
	sub.Status = Status(status)
	sub.TrialEndsAt = trialEnds
	sub.CurrentPeriodEnd = periodEnd
	sub.ScheduledPlanDate = scheduledDate
	if scheduledPlan != nil {
		sub.ScheduledPlan = ptr(Plan(*scheduledPlan))
	}
	return &sub, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func planString(p *Plan) *string {
	if p == nil {
		return nil
	}
	return ptr(string(*p))
}
