// Package load_repo provides the PostgreSQL implementation of the load
// document store.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package load_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/loads"
	"millstock/internal/infrastructure/storage/postgres"
)

const (
	loadsTable     = "doc_loads"
	loadLinesTable = "doc_load_lines"
)

var (
	loadColumns = postgres.ExtractDBColumns[loads.Load]()
	lineColumns = postgres.ExtractDBColumns[loads.Line]()
)

// LoadRepo implements loads.Repository.
type LoadRepo struct {
	builder squirrel.StatementBuilderType
}

// NewLoadRepo creates a new load repository.
func NewLoadRepo() *LoadRepo {
	return &LoadRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LoadRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts the load header and its lines.
func (r *LoadRepo) Create(ctx context.Context, load *loads.Load) error {
	q := r.builder.Insert(loadsTable).
		Columns(loadColumns...).
		Values(
			load.ID, load.Number, load.TotalWeight.Int64Scaled(), load.TotalValue,
			load.Assignee, load.Notes, load.Version, load.CreatedAt, load.UpdatedAt, load.CreatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert load: %w", err)
	}

	return r.insertLines(ctx, load.ID, load.Lines)
}

func (r *LoadRepo) insertLines(ctx context.Context, loadID id.ID, lines []loads.Line) error {
	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(loadLinesTable).
		Columns(append([]string{"load_id"}, lineColumns...)...)

	for _, line := range lines {
		q = q.Values(
			loadID, line.LineID, line.LineNo, line.ProductType,
			line.Quantity.Int64Scaled(), line.PricePerUnit, line.TotalValue, line.LotsUsed,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// GetByID retrieves a load with its lines.
func (r *LoadRepo) GetByID(ctx context.Context, loadID id.ID) (*loads.Load, error) {
	return r.get(ctx, loadID, false)
}

// GetForUpdate retrieves a load with a row lock. Must run in a transaction.
func (r *LoadRepo) GetForUpdate(ctx context.Context, loadID id.ID) (*loads.Load, error) {
	return r.get(ctx, loadID, true)
}

func (r *LoadRepo) get(ctx context.Context, loadID id.ID, forUpdate bool) (*loads.Load, error) {
	q := r.builder.Select(loadColumns...).
		From(loadsTable).
		Where(squirrel.Eq{"id": loadID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var load loads.Load
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &load, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("load", loadID.String())
		}
		return nil, fmt.Errorf("get load: %w", err)
	}

	lines, err := r.getLines(ctx, loadID)
	if err != nil {
		return nil, err
	}
	load.Lines = lines

	return &load, nil
}

func (r *LoadRepo) getLines(ctx context.Context, loadID id.ID) ([]loads.Line, error) {
	q := r.builder.Select(lineColumns...).
		From(loadLinesTable).
		Where(squirrel.Eq{"load_id": loadID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []loads.Line
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// Delete removes the load and its lines. Loads are settled documents once
// reconciled, so this is a hard delete.
func (r *LoadRepo) Delete(ctx context.Context, loadID id.ID) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+loadLinesTable+" WHERE load_id = $1", loadID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	result, err := querier.Exec(ctx, "DELETE FROM "+loadsTable+" WHERE id = $1", loadID)
	if err != nil {
		return fmt.Errorf("delete load: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("load", loadID.String())
	}

	return nil
}

// List retrieves loads with filtering. Lines are not loaded for listings.
func (r *LoadRepo) List(ctx context.Context, filter loads.ListFilter) (domain.ListResult[*loads.Load], error) {
	result := domain.ListResult[*loads.Load]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(loadColumns...).From(loadsTable)

	if filter.Assignee != "" {
		q = q.Where(squirrel.Eq{"assignee": filter.Assignee})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list loads: %w", err)
	}

	return result, nil
}

func parseOrderBy(orderBy string) (string, error) {
	allowed := map[string]struct{}{
		"id": {}, "number": {}, "total_weight": {}, "total_value": {},
		"assignee": {}, "created_at": {}, "updated_at": {},
	}

	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid order_by field").
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// Ensure interface compliance.
var _ loads.Repository = (*LoadRepo)(nil)
