package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
)

var groupColumns = []string{"id", "name", "description", "created_at", "updated_at"}

type groupRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r groupRow) values() []interface{} {
	return []interface{}{r.ID, r.Name, r.Description, r.CreatedAt, r.UpdatedAt}
}

func (r groupRow) group() group.Group {
	return group.Group{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo groupRepository) toRow(grp group.Group) groupRow {
	return groupRow{
		ID:          grp.ID,
		Name:        grp.Name,
		Description: grp.Description,
		CreatedAt:   grp.CreatedAt.UTC(),
		UpdatedAt:   grp.UpdatedAt.UTC(),
	}
}

func (repo groupRepository) where(filter group.QueryFilter) *where {
	w := new(where)
	w.in("g.id", filter.IDs)
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(g.name ILIKE ? OR g.description ILIKE ?)", val, val)
	}
	return w
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	grp.ID = uuid.New().String()
	var r groupRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, insertQuery("groups", groupColumns, 1), repo.toRow(grp).values()...)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return r.group(), nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return group.Group{}, group.ErrNotFound
	}
	var r groupRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &r, "SELECT * FROM groups WHERE id = $1", id); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "finding group")
	}
	return r.group(), nil
}

func (repo groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]group.Group, error) {
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query := "SELECT g.* FROM groups g" + w.String() + orderBy(ordering, map[string]string{
		"name":       "g.name",
		"created_at": "g.created_at",
	}, "g.name ASC")
	query, args, err := bind(ext, query, w.args)
	if err != nil {
		return nil, err
	}

	var rows []groupRow
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	grps := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.group())
	}
	return grps, nil
}

func (repo groupRepository) UpdateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	r := repo.toRow(grp)
	var updated groupRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &updated,
		updateQuery("groups", groupColumns[1:]), append(r.values()[1:], r.ID)...)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "updating group")
	}
	return updated.group(), nil
}

func (repo groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM groups WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo groupRepository) CountGroups(ctx context.Context, filter group.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.where(filter)
	cnt, err := count(ctx, getExec(repo.db, exec), "SELECT COUNT(*) FROM groups g"+w.String(), w.args)
	return cnt, errors.Wrap(err, "counting groups")
}

func (repo groupRepository) CountStudentsPerGroup(ctx context.Context, filter group.QueryFilter, exec ...core.DBExecutor) ([]group.StudentCount, error) {
	w := repo.where(filter)
	ext := getExec(repo.db, exec)
	query := `SELECT g.id AS group_id, g.name AS group_name, COUNT(s.id) AS students
		FROM groups g LEFT JOIN students s ON s.group_id = g.id` + w.String() + `
		GROUP BY g.id, g.name ORDER BY g.name`
	query, args, err := bind(ext, query, w.args)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		GroupID   string `db:"group_id"`
		GroupName string `db:"group_name"`
		Students  int    `db:"students"`
	}
	if err = sqlx.SelectContext(ctx, ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "counting students per group")
	}
	counts := make([]group.StudentCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, group.StudentCount{GroupID: r.GroupID, GroupName: r.GroupName, Students: r.Students})
	}
	return counts, nil
}

func (repo groupRepository) LinkAdministrator(ctx context.Context, groupID, adminID string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO group_administrators (group_id, administrator_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, adminID)
	return errors.Wrap(err, "linking group administrator")
}

func (repo groupRepository) UnlinkAdministrator(ctx context.Context, groupID, adminID string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		"DELETE FROM group_administrators WHERE group_id = $1 AND administrator_id = $2", groupID, adminID)
	return errors.Wrap(err, "unlinking group administrator")
}

func (repo groupRepository) UnlinkAllAdministrators(ctx context.Context, groupID string, exec ...core.DBExecutor) (int, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx, "DELETE FROM group_administrators WHERE group_id = $1", groupID)
	if err != nil {
		return 0, errors.Wrap(err, "unlinking group administrators")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "unlinking group administrators")
}

func (repo groupRepository) AdministeredGroupIDs(ctx context.Context, adminID string, exec ...core.DBExecutor) ([]string, error) {
	ids := []string{}
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &ids,
		"SELECT group_id FROM group_administrators WHERE administrator_id = $1 ORDER BY group_id", adminID)
	if err != nil {
		return nil, errors.Wrap(err, "querying administered groups")
	}
	return ids, nil
}
