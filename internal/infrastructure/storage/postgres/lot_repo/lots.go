// Package lot_repo provides the PostgreSQL implementation of the lot store.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package lot_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/lots"
	"millstock/internal/infrastructure/storage/postgres"
)

const lotsTable = "stock_lots"

var lotColumns = postgres.ExtractDBColumns[lots.Lot]()

// LotRepo implements lots.Repository.
type LotRepo struct {
	builder squirrel.StatementBuilderType
}

// NewLotRepo creates a new lot repository.
func NewLotRepo() *LotRepo {
	return &LotRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LotRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a single lot.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	q := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(
			lot.ID, lot.ProductType, lot.Weight.Int64Scaled(), lot.Price, lot.Status,
			lot.Version, lot.CreatedAt, lot.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}

	return nil
}

// CreateBatch inserts many lots. Uses COPY when inside a transaction.
func (r *LotRepo) CreateBatch(ctx context.Context, batch []*lots.Lot) error {
	if len(batch) == 0 {
		return nil
	}

	txm := r.getTxManager(ctx)
	if tx := txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(txm)
		rows := make([][]any, 0, len(batch))
		for _, lot := range batch {
			rows = append(rows, []any{
				lot.ID, lot.ProductType, lot.Weight.Int64Scaled(), lot.Price, lot.Status,
				lot.Version, lot.CreatedAt, lot.UpdatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, lotsTable, lotColumns, rows); err != nil {
			return fmt.Errorf("copy lots: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(lotsTable).Columns(lotColumns...)
	for _, lot := range batch {
		q = q.Values(
			lot.ID, lot.ProductType, lot.Weight.Int64Scaled(), lot.Price, lot.Status,
			lot.Version, lot.CreatedAt, lot.UpdatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lots: %w", err)
	}

	return nil
}

// GetByID retrieves a lot.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"id": lotID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot lots.Lot
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}

	return &lot, nil
}

// ListAvailable returns available lots of a product type in allocation order.
func (r *LotRepo) ListAvailable(ctx context.Context, productType lots.ProductType, order lots.Order) ([]*lots.Lot, error) {
	orderBy := "created_at ASC, id ASC"
	if order == lots.OrderNewestFirst {
		orderBy = "created_at DESC, id DESC"
	}

	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{
			"product_type": productType,
			"status":       lots.StatusAvailable,
		}).
		OrderBy(orderBy)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var result []*lots.Lot
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &result, sql, args...); err != nil {
		return nil, fmt.Errorf("list available lots: %w", err)
	}

	return result, nil
}

// ClaimForLoad transitions an available lot to loaded, shrinking its weight
// to the claimed portion. The status predicate is the optimistic guard: zero
// rows means another commit touched the lot since planning.
func (r *LotRepo) ClaimForLoad(ctx context.Context, lotID id.ID, weightUsed types.Weight) error {
	sql, args, err := r.claimQuery(lotID, weightUsed).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("claim lot: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lotID.String())
	}

	return nil
}

func (r *LotRepo) claimQuery(lotID id.ID, weightUsed types.Weight) squirrel.UpdateBuilder {
	return r.builder.Update(lotsTable).
		Set("status", lots.StatusLoaded).
		Set("weight", weightUsed.Int64Scaled()).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": lotID, "status": lots.StatusAvailable}).
		Where(squirrel.GtOrEq{"weight": weightUsed.Int64Scaled()})
}

// UpdateStatus transitions a lot with an expected-status guard.
func (r *LotRepo) UpdateStatus(ctx context.Context, lotID id.ID, from, to lots.Status) error {
	q := r.builder.Update(lotsTable).
		Set("status", to).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": lotID, "status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lotID.String())
	}

	return nil
}

// MarkSoldWithWeight marks a loaded lot sold with only part of its weight.
func (r *LotRepo) MarkSoldWithWeight(ctx context.Context, lotID id.ID, soldWeight types.Weight) error {
	sql, args, err := r.markSoldQuery(lotID, soldWeight).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark lot sold: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lotID.String())
	}

	return nil
}

func (r *LotRepo) markSoldQuery(lotID id.ID, soldWeight types.Weight) squirrel.UpdateBuilder {
	return r.builder.Update(lotsTable).
		Set("status", lots.StatusSold).
		Set("weight", soldWeight.Int64Scaled()).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": lotID, "status": lots.StatusLoaded}).
		Where(squirrel.GtOrEq{"weight": soldWeight.Int64Scaled()})
}

// List retrieves lots with filtering and pagination.
func (r *LotRepo) List(ctx context.Context, filter lots.ListFilter) (domain.ListResult[*lots.Lot], error) {
	result := domain.ListResult[*lots.Lot]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(lotColumns...).From(lotsTable)

	if filter.ProductType != nil {
		q = q.Where(squirrel.Eq{"product_type": *filter.ProductType})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
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
		return result, fmt.Errorf("list lots: %w", err)
	}

	return result, nil
}

func parseOrderBy(orderBy string) (string, error) {
	allowed := map[string]struct{}{
		"id": {}, "product_type": {}, "weight": {}, "price": {},
		"status": {}, "created_at": {}, "updated_at": {},
	}

	if strings.TrimSpace(orderBy) == "" {
		return "created_at ASC", nil
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
var _ lots.Repository = (*LotRepo)(nil)
