package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/plan"
)

var planColumns = []string{
	"id", "group_id", "name", "total_installments", "installment_value", "start_date", "end_date", "created_at", "updated_at",
}

type planRow struct {
	ID                string          `db:"id"`
	GroupID           string          `db:"group_id"`
	Name              string          `db:"name"`
	TotalInstallments int             `db:"total_installments"`
	InstallmentValue  decimal.Decimal `db:"installment_value"`
	StartDate         time.Time       `db:"start_date"`
	EndDate           time.Time       `db:"end_date"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r planRow) values() []interface{} {
	return []interface{}{
		r.ID, r.GroupID, r.Name, r.TotalInstallments, r.InstallmentValue, r.StartDate, r.EndDate, r.CreatedAt, r.UpdatedAt,
	}
}

func (r planRow) plan() plan.Plan {
	return plan.Plan{
		ID:                r.ID,
		GroupID:           r.GroupID,
		Name:              r.Name,
		TotalInstallments: r.TotalInstallments,
		InstallmentValue:  r.InstallmentValue,
		StartDate:         core.TruncateDay(r.StartDate),
		EndDate:           core.TruncateDay(r.EndDate),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type planRepository struct {
	db *sqlx.DB
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *sqlx.DB) plan.Repository {
	return &planRepository{db: db}
}

func (repo planRepository) toRow(p plan.Plan) planRow {
	return planRow{
		ID:                p.ID,
		GroupID:           p.GroupID,
		Name:              p.Name,
		TotalInstallments: p.TotalInstallments,
		InstallmentValue:  p.InstallmentValue,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}

func (repo planRepository) where(filter plan.QueryFilter) *where {
	w := new(where)
	w.in("group_id", filter.GroupIDs)
	if filter.GroupID != "" {
		w.add("group_id = ?", filter.GroupID)
	}
	if filter.Search != "" {
		w.add("name ILIKE ?", "%"+filter.Search+"%")
	}
	return w
}

func (repo planRepository) CreatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	p.ID = uuid.New().String()
	var r planRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, insertQuery("payment_plans", planColumns, 1), repo.toRow(p).values()...)
	if err != nil {
		return plan.Plan{}, errors.Wrap(err, "inserting payment plan")
	}
	return r.plan(), nil
}

func (repo planRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Plan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return plan.Plan{}, plan.ErrNotFound
	}
	var r planRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, "SELECT * FROM payment_plans WHERE id = $1", id); err != nil {
		return plan.Plan{}, trapNoRowsErr(err, plan.ErrNotFound, "finding payment plan")
	}
	return r.plan(), nil
}

func (repo planRepository) QueryPlans(ctx context.Context, filter plan.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]plan.Plan, error) {
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query := "SELECT * FROM payment_plans" + w.String() + orderBy(ordering, map[string]string{
		"name":       "name",
		"start_date": "start_date",
		"created_at": "created_at",
	}, "name ASC")
	query, args, err := bind(ext, query, w.args)
	if err != nil {
		return nil, err
	}

	var rows []planRow
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying payment plans")
	}
	plans := make([]plan.Plan, 0, len(rows))
	for _, r := range rows {
		plans = append(plans, r.plan())
	}
	return plans, nil
}

func (repo planRepository) UpdatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	r := repo.toRow(p)
	var updated planRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &updated,
		updateQuery("payment_plans", planColumns[1:]), append(r.values()[1:], r.ID)...)
	if err != nil {
		return plan.Plan{}, trapNoRowsErr(err, plan.ErrNotFound, "updating payment plan")
	}
	return updated.plan(), nil
}

func (repo planRepository) DeletePlan(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM payment_plans WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting payment plan")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return plan.ErrNotFound
	}
	return nil
}
