package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"

	"routeopt/pkg/database"
	"routeopt/pkg/telemetry"
)

// PostgresSolveRepository PostgreSQL реализация
type PostgresSolveRepository struct {
	db database.DB
}

// NewPostgresSolveRepository создаёт новый репозиторий
func NewPostgresSolveRepository(db database.DB) *PostgresSolveRepository {
	return &PostgresSolveRepository{db: db}
}

func (r *PostgresSolveRepository) Create(ctx context.Context, solve *Solve) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSolveRepository.Create")
	defer span.End()

	query := `
		INSERT INTO solves (
			name, kind, status, total_distance, total_cost,
			vehicles_used, deliveries_assigned, deliveries_unassigned,
			computation_time_ms, request_data, response_data, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		solve.Name,
		solve.Kind,
		solve.Status,
		solve.TotalDistance,
		solve.TotalCost,
		solve.VehiclesUsed,
		solve.DeliveriesAssigned,
		solve.DeliveriesUnassigned,
		solve.ComputationTimeMs,
		solve.RequestData,
		solve.ResponseData,
		solve.Tags,
	).Scan(&solve.ID, &solve.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create solve: %w", err)
	}

	return nil
}

func (r *PostgresSolveRepository) GetByID(ctx context.Context, id string) (*Solve, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSolveRepository.GetByID")
	defer span.End()

	query := `
		SELECT
			id, name, kind, status, total_distance, total_cost,
			vehicles_used, deliveries_assigned, deliveries_unassigned,
			computation_time_ms, request_data, response_data, tags, created_at
		FROM solves
		WHERE id = $1
	`

	solve := &Solve{}
	var tags pgtype.Array[string]

	err := r.db.QueryRow(ctx, query, id).Scan(
		&solve.ID,
		&solve.Name,
		&solve.Kind,
		&solve.Status,
		&solve.TotalDistance,
		&solve.TotalCost,
		&solve.VehiclesUsed,
		&solve.DeliveriesAssigned,
		&solve.DeliveriesUnassigned,
		&solve.ComputationTimeMs,
		&solve.RequestData,
		&solve.ResponseData,
		&tags,
		&solve.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSolveNotFound
		}
		return nil, fmt.Errorf("failed to get solve: %w", err)
	}

	solve.Tags = tags.Elements

	return solve, nil
}

func (r *PostgresSolveRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSolveRepository.Delete")
	defer span.End()

	query := `DELETE FROM solves WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete solve: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSolveNotFound
	}

	return nil
}

func (r *PostgresSolveRepository) List(
	ctx context.Context,
	opts *ListOptions,
) ([]*SolveSummary, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSolveRepository.List")
	defer span.End()

	if opts == nil {
		opts = &ListOptions{Limit: 20, Offset: 0, Sort: SortByCreatedDesc}
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	where, args := r.buildWhereClause(opts.Filter)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM solves WHERE %s`, where)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count solves: %w", err)
	}

	orderBy := r.buildOrderBy(opts.Sort)

	selectQuery := fmt.Sprintf(`
		SELECT
			id, name, kind, status, total_distance, total_cost,
			vehicles_used, deliveries_assigned, deliveries_unassigned,
			computation_time_ms, tags, created_at
		FROM solves
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, orderBy, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list solves: %w", err)
	}
	defer rows.Close()

	var results []*SolveSummary
	for rows.Next() {
		summary := &SolveSummary{}
		var tags pgtype.Array[string]

		err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Kind,
			&summary.Status,
			&summary.TotalDistance,
			&summary.TotalCost,
			&summary.VehiclesUsed,
			&summary.DeliveriesAssigned,
			&summary.DeliveriesUnassigned,
			&summary.ComputationTimeMs,
			&tags,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan solve: %w", err)
		}

		summary.Tags = tags.Elements
		results = append(results, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, total, nil
}

func (r *PostgresSolveRepository) buildWhereClause(filter *ListFilter) (string, []any) {
	conditions := []string{"TRUE"}
	args := []any{}
	argNum := 1

	if filter != nil {
		if filter.Kind != "" {
			conditions = append(conditions, fmt.Sprintf("kind = $%d", argNum))
			args = append(args, filter.Kind)
			argNum++
		}

		if filter.Status != "" {
			conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
			args = append(args, filter.Status)
			argNum++
		}

		if len(filter.Tags) > 0 {
			conditions = append(conditions, fmt.Sprintf("tags && $%d", argNum))
			args = append(args, pq.Array(filter.Tags))
			argNum++
		}

		if filter.MinDistance != nil {
			conditions = append(conditions, fmt.Sprintf("total_distance >= $%d", argNum))
			args = append(args, *filter.MinDistance)
			argNum++
		}

		if filter.MaxDistance != nil {
			conditions = append(conditions, fmt.Sprintf("total_distance <= $%d", argNum))
			args = append(args, *filter.MaxDistance)
			argNum++
		}

		if filter.StartTime != nil {
			conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
			args = append(args, *filter.StartTime)
			argNum++
		}

		if filter.EndTime != nil {
			conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
			args = append(args, *filter.EndTime)
		}
	}

	return strings.Join(conditions, " AND "), args
}

func (r *PostgresSolveRepository) buildOrderBy(sort SortOrder) string {
	switch sort {
	case SortByCreatedAsc:
		return "created_at ASC"
	case SortByDistanceDesc:
		return "total_distance DESC"
	case SortByCostDesc:
		return "total_cost DESC"
	default:
		return "created_at DESC"
	}
}
