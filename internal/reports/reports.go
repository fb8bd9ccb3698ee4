// Package reports runs read-only operator queries over a pgx pool.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// DefaultTimeout bounds one report query.
const DefaultTimeout = 10 * time.Second

// SessionRow is one persisted session joined with its owner.
type SessionRow struct {
	ID        uint
	UserID    uint
	Email     string
	IP        string
	Active    bool
	ValidTill time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RevenueRow sums paid orders of one course.
type RevenueRow struct {
	CourseID uint
	Title    string
	Orders   int64
	Revenue  int64
}

// Reports queries the store directly, bypassing the ORM.
type Reports struct {
	q pgxscan.Querier
}

// New returns Reports reading through q, usually a *pgxpool.Pool.
func New(q pgxscan.Querier) *Reports {
	return &Reports{q: q}
}

const sessionsQuery = `
SELECT t.id, t.user_id, u.email, t.ip, t.active, t.valid_till, t.created_at, t.updated_at
FROM user_tokens t
JOIN users u ON u.id = t.user_id
WHERE t.user_id = $1 AND ($2 OR t.active)
ORDER BY t.created_at DESC, t.id DESC`

// Sessions lists the sessions of userID, newest first. Inactive sessions are
// included when all is set.
func (r *Reports) Sessions(ctx context.Context, userID uint, all bool) ([]SessionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var rows []SessionRow
	if err := pgxscan.Select(ctx, r.q, &rows, sessionsQuery, int64(userID), all); err != nil {
		return nil, fmt.Errorf("sessions of user %d: %w", userID, err)
	}
	return rows, nil
}

const revenueQuery = `
SELECT c.id AS course_id, c.title, COUNT(o.id) AS orders, COALESCE(SUM(o.cost), 0) AS revenue
FROM orders o
JOIN courses c ON c.id = o.course_id
WHERE o.status = 2 AND o.manual = FALSE AND o.paid_at >= $1 AND o.paid_at < $2
GROUP BY c.id, c.title
ORDER BY revenue DESC`

// Revenue sums paid, non-manual orders per course for payments in [from, to).
func (r *Reports) Revenue(ctx context.Context, from, to time.Time) ([]RevenueRow, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var rows []RevenueRow
	if err := pgxscan.Select(ctx, r.q, &rows, revenueQuery, from, to); err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	return rows, nil
}
