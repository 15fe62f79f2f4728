package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/student"
)

var studentColumns = []string{"id", "group_id", "name", "email", "phone", "created_at", "updated_at"}

type studentRow struct {
	ID        string      `db:"id"`
	GroupID   string      `db:"group_id"`
	Name      string      `db:"name"`
	Email     null.String `db:"email"`
	Phone     null.String `db:"phone"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r studentRow) values() []interface{} {
	return []interface{}{r.ID, r.GroupID, r.Name, r.Email, r.Phone, r.CreatedAt, r.UpdatedAt}
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:        r.ID,
		GroupID:   r.GroupID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo studentRepository) toRow(std student.Student) studentRow {
	return studentRow{
		ID:        std.ID,
		GroupID:   std.GroupID,
		Name:      std.Name,
		Email:     std.Email,
		Phone:     std.Phone,
		CreatedAt: std.CreatedAt.UTC(),
		UpdatedAt: std.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) where(filter student.QueryFilter) *where {
	w := new(where)
	w.in("id", filter.IDs)
	w.in("group_id", filter.GroupIDs)
	if filter.GroupID != "" {
		w.add("group_id = ?", filter.GroupID)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", val, val, val)
	}
	return w
}

func (repo studentRepository) CreateStudents(ctx context.Context, stds []student.Student, exec ...core.DBExecutor) ([]student.Student, error) {
	if len(stds) == 0 {
		return []student.Student{}, nil
	}
	args := make([]interface{}, 0, len(stds)*len(studentColumns))
	for _, std := range stds {
		std.ID = uuid.New().String()
		args = append(args, repo.toRow(std).values()...)
	}

	var rows []studentRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, insertQuery("students", studentColumns, len(stds)), args...)
	if err != nil {
		return nil, errors.Wrap(err, "inserting students")
	}
	created := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		created = append(created, r.student())
	}
	return created, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var r studentRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, "SELECT * FROM students WHERE id = $1", id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return r.student(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query := "SELECT * FROM students" + w.String() + orderBy(ordering, map[string]string{
		"name":       "name",
		"email":      "email",
		"created_at": "created_at",
	}, "name ASC")
	query, args, err := bind(ext, query, w.args)
	if err != nil {
		return nil, err
	}

	var rows []studentRow
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	stds := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		stds = append(stds, r.student())
	}
	return stds, nil
}

func (repo studentRepository) CountStudents(ctx context.Context, filter student.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.where(filter)
	cnt, err := count(ctx, getExec(repo.db, exec), "SELECT COUNT(*) FROM students"+w.String(), w.args)
	return cnt, errors.Wrap(err, "counting students")
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	r := repo.toRow(std)
	var updated studentRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &updated,
		updateQuery("students", studentColumns[1:]), append(r.values()[1:], r.ID)...)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "updating student")
	}
	return updated.student(), nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}
