// Package report_repo provides the PostgreSQL implementation of the load
// report store. Reports are append-only: insert and read, nothing else.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package report_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/reports"
	"millstock/internal/infrastructure/storage/postgres"
)

const (
	reportsTable     = "doc_load_reports"
	reportLinesTable = "doc_load_report_lines"
)

var (
	reportColumns     = postgres.ExtractDBColumns[reports.LoadReport]()
	reportLineColumns = postgres.ExtractDBColumns[reports.ReportLine]()
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	builder squirrel.StatementBuilderType
}

// NewReportRepo creates a new load report repository.
func NewReportRepo() *ReportRepo {
	return &ReportRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ReportRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts the report and its lines.
func (r *ReportRepo) Create(ctx context.Context, report *reports.LoadReport) error {
	q := r.builder.Insert(reportsTable).
		Columns(reportColumns...).
		Values(
			report.ID, report.LoadID, report.LoadNumber, report.Assignee,
			report.TotalLoaded.Int64Scaled(), report.TotalSold.Int64Scaled(),
			report.TotalRemaining.Int64Scaled(), report.TotalSoldValue,
			report.LoadedAt, report.ReconciledAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	if len(report.Lines) == 0 {
		return nil
	}

	lq := r.builder.Insert(reportLinesTable).
		Columns(append([]string{"report_id"}, reportLineColumns...)...)

	for _, line := range report.Lines {
		lq = lq.Values(
			report.ID, line.LineNo, line.ProductType, line.PricePerUnit,
			line.LoadedQuantity.Int64Scaled(), line.SoldQuantity.Int64Scaled(),
			line.RemainingQuantity.Int64Scaled(), line.SoldValue, line.LotsUsed,
		)
	}

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert report lines: %w", err)
	}

	return nil
}

// GetByID retrieves a report with its lines.
func (r *ReportRepo) GetByID(ctx context.Context, reportID id.ID) (*reports.LoadReport, error) {
	q := r.builder.Select(reportColumns...).
		From(reportsTable).
		Where(squirrel.Eq{"id": reportID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var report reports.LoadReport
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &report, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("load report", reportID.String())
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	lq := r.builder.Select(reportLineColumns...).
		From(reportLinesTable).
		Where(squirrel.Eq{"report_id": reportID}).
		OrderBy("line_no")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &report.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get report lines: %w", err)
	}

	return &report, nil
}

// List retrieves reports with filtering. Lines are not loaded for listings.
func (r *ReportRepo) List(ctx context.Context, filter reports.ListFilter) (domain.ListResult[*reports.LoadReport], error) {
	result := domain.ListResult[*reports.LoadReport]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(reportColumns...).From(reportsTable)

	if filter.Assignee != "" {
		q = q.Where(squirrel.Eq{"assignee": filter.Assignee})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"reconciled_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"reconciled_at": *filter.To})
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
		return result, fmt.Errorf("list reports: %w", err)
	}

	return result, nil
}

func parseOrderBy(orderBy string) (string, error) {
	allowed := map[string]struct{}{
		"id": {}, "load_number": {}, "assignee": {},
		"total_sold": {}, "total_sold_value": {},
		"loaded_at": {}, "reconciled_at": {},
	}

	if strings.TrimSpace(orderBy) == "" {
		return "reconciled_at DESC", nil
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
var _ reports.Repository = (*ReportRepo)(nil)
