package sqlxrepos

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
)

var (
	installmentColumns = []string{
		"id", "payment_plan_id", "student_id", "installment_number", "due_date", "value", "status", "payment_date",
		"created_at", "updated_at",
	}

	errUnscopedDelete = errors.New("refusing to delete installments without an installment, plan or student filter")
)

type installmentRow struct {
	ID          string          `db:"id"`
	PlanID      string          `db:"payment_plan_id"`
	StudentID   string          `db:"student_id"`
	Number      int             `db:"installment_number"`
	DueDate     time.Time       `db:"due_date"`
	Value       decimal.Decimal `db:"value"`
	Status      string          `db:"status"`
	PaymentDate null.Time       `db:"payment_date"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r installmentRow) values() []interface{} {
	return []interface{}{
		r.ID, r.PlanID, r.StudentID, r.Number, r.DueDate, r.Value, r.Status, r.PaymentDate, r.CreatedAt, r.UpdatedAt,
	}
}

func (r installmentRow) installment() installment.Installment {
	inst := installment.Installment{
		ID:          r.ID,
		PlanID:      r.PlanID,
		StudentID:   r.StudentID,
		Number:      r.Number,
		DueDate:     core.TruncateDay(r.DueDate),
		Value:       r.Value,
		Status:      installment.Status(r.Status),
		PaymentDate: r.PaymentDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if inst.PaymentDate.Valid {
		inst.PaymentDate.Time = core.TruncateDay(inst.PaymentDate.Time)
	}
	return inst
}

type installmentRepository struct {
	db *sqlx.DB
}

var _ installment.Repository = (*installmentRepository)(nil) // interface compliance check

func NewInstallmentRepository(db *sqlx.DB) installment.Repository {
	return &installmentRepository{db: db}
}

func statusStrings(statuses []installment.Status) []string {
	strs := make([]string, 0, len(statuses))
	for _, s := range statuses {
		strs = append(strs, string(s))
	}
	return strs
}

func (repo installmentRepository) where(filter installment.QueryFilter) *where {
	w := new(where)
	w.in("id", filter.IDs)
	if filter.PlanID != "" {
		w.add("payment_plan_id = ?", filter.PlanID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.GroupIDs != nil {
		if len(filter.GroupIDs) == 0 {
			w.add("FALSE")
		} else {
			w.add("payment_plan_id IN (SELECT id FROM payment_plans WHERE group_id IN (?))", filter.GroupIDs)
		}
	}
	if len(filter.Statuses) > 0 {
		w.add("status IN (?)", statusStrings(filter.Statuses))
	}
	if !filter.DueFrom.IsZero() {
		w.add("due_date >= ?", filter.DueFrom)
	}
	if !filter.DueBefore.IsZero() {
		w.add("due_date < ?", filter.DueBefore)
	}
	if !filter.PaidFrom.IsZero() {
		w.add("payment_date >= ?", filter.PaidFrom)
	}
	if !filter.PaidTo.IsZero() {
		w.add("payment_date <= ?", filter.PaidTo)
	}
	return w
}

func (repo installmentRepository) CreateInstallments(ctx context.Context, drafts []installment.Draft, exec ...core.DBExecutor) ([]installment.Installment, error) {
	if len(drafts) == 0 {
		return []installment.Installment{}, nil
	}
	for _, d := range drafts {
		if err := installment.CheckPayment(d.Status, d.PaymentDate); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	args := make([]interface{}, 0, len(drafts)*len(installmentColumns))
	for _, d := range drafts {
		r := installmentRow{
			ID:          uuid.New().String(),
			PlanID:      d.PlanID,
			StudentID:   d.StudentID,
			Number:      d.Number,
			DueDate:     d.DueDate,
			Value:       d.Value,
			Status:      string(d.Status),
			PaymentDate: d.PaymentDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		args = append(args, r.values()...)
	}

	var rows []installmentRow
	query := insertQuery("installments", installmentColumns, len(drafts))
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "inserting installments")
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StudentID != rows[j].StudentID {
			return rows[i].StudentID < rows[j].StudentID
		}
		return rows[i].Number < rows[j].Number
	})
	insts := make([]installment.Installment, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, r.installment())
	}
	return insts, nil
}

func (repo installmentRepository) GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (installment.Installment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return installment.Installment{}, installment.ErrNotFound
	}
	var r installmentRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, "SELECT * FROM installments WHERE id = $1", id); err != nil {
		return installment.Installment{}, trapNoRowsErr(err, installment.ErrNotFound, "finding installment")
	}
	return r.installment(), nil
}

func (repo installmentRepository) QueryInstallments(ctx context.Context, filter installment.QueryFilter, exec ...core.DBExecutor) ([]installment.Installment, error) {
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query, args, err := bind(ext, "SELECT * FROM installments"+w.String()+" ORDER BY student_id, installment_number, due_date", w.args)
	if err != nil {
		return nil, err
	}

	var rows []installmentRow
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying installments")
	}
	insts := make([]installment.Installment, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, r.installment())
	}
	return insts, nil
}

func (repo installmentRepository) CountInstallments(ctx context.Context, filter installment.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.where(filter)
	cnt, err := count(ctx, getExec(repo.db, exec), "SELECT COUNT(*) FROM installments"+w.String(), w.args)
	return cnt, errors.Wrap(err, "counting installments")
}

func (repo installmentRepository) UpdatePayment(ctx context.Context, id string, status installment.Status, paymentDate null.Time, exec ...core.DBExecutor) (installment.Installment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return installment.Installment{}, installment.ErrNotFound
	}
	var r installmentRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r,
		updateQuery("installments", []string{"status", "payment_date", "updated_at"}),
		string(status), paymentDate, time.Now().UTC(), id)
	if err != nil {
		return installment.Installment{}, trapNoRowsErr(err, installment.ErrNotFound, "updating installment payment")
	}
	return r.installment(), nil
}

// UpdateStatuses never touches paid installments.
func (repo installmentRepository) UpdateStatuses(ctx context.Context, ids []string, status installment.Status, exec ...core.DBExecutor) (int, error) {
	if err := installment.CheckPayment(status, null.Time{}); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	ext := getExec(repo.db, exec)
	query, args, err := bind(ext,
		"UPDATE installments SET status = ?, updated_at = ? WHERE id IN (?) AND status <> ?",
		[]interface{}{string(status), time.Now().UTC(), ids, string(installment.StatusPaid)})
	if err != nil {
		return 0, err
	}
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating installment statuses")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "updating installment statuses")
}

func (repo installmentRepository) DeleteInstallments(ctx context.Context, filter installment.QueryFilter, exec ...core.DBExecutor) (int, error) {
	if !filter.IsScoped() {
		return 0, errUnscopedDelete
	}
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query, args, err := bind(ext, "DELETE FROM installments"+w.String(), w.args)
	if err != nil {
		return 0, err
	}
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting installments")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting installments")
}
