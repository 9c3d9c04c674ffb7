package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// PGRepository reads audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed timeline repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Find returns entries matching filters, newest first.
func (r *PGRepository) Find(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var (
		where []string
		args  []any
	)
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To.AddDate(0, 0, 1))
		where = append(where, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		args = append(args, "%"+strings.ToLower(v)+"%")
		where = append(where, fmt.Sprintf("lower(COALESCE(actor, '')) LIKE $%d", len(args)))
	}
	if v := strings.TrimSpace(filters.Module); v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("module = $%d", len(args)))
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT occurred_at, action, module, COALESCE(sub_module, ''),
	COALESCE(actor_id::text, ''), COALESCE(actor, ''), details
FROM audit_logs`+clause+
		fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, shared.Unavailable("audit timeline", err)
	}
	defer rows.Close()

	out := make([]TimelineRow, 0, limit)
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Action, &row.Module, &row.SubModule, &row.ActorID, &row.Actor, &row.Details); err != nil {
			return nil, shared.Unavailable("scan audit row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("audit timeline", err)
	}
	return out, nil
}
