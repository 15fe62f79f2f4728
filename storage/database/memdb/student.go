package memdb

import (
	"context"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) match(filter student.QueryFilter, std student.Student) bool {
	if !inSet(filter.GroupIDs, std.GroupID) {
		return false
	}
	if filter.IDs != nil && !inSet(filter.IDs, std.ID) {
		return false
	}
	if filter.GroupID != "" && std.GroupID != filter.GroupID {
		return false
	}
	return filter.Search == "" ||
		containsFold(std.Name, filter.Search) ||
		containsFold(std.Email.String, filter.Search) ||
		containsFold(std.Phone.String, filter.Search)
}

func (repo *studentRepository) CreateStudents(_ context.Context, stds []student.Student, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]student.Student, 0, len(stds))
	for _, std := range stds {
		std.ID = newID()
		repo.db.students[std.ID] = std
		created = append(created, std)
	}
	return created, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stds := make([]student.Student, 0)
	for _, std := range repo.db.students {
		if repo.match(filter, std) {
			stds = append(stds, std)
		}
	}
	sortBy(len(stds), func(i, j int) { stds[i], stds[j] = stds[j], stds[i] }, ordering, map[string]func(i, j int) bool{
		"name":       func(i, j int) bool { return stds[i].Name < stds[j].Name },
		"email":      func(i, j int) bool { return stds[i].Email.String < stds[j].Email.String },
		"created_at": func(i, j int) bool { return stds[i].CreatedAt.Before(stds[j].CreatedAt) },
	}, "name")
	return stds, nil
}

func (repo *studentRepository) CountStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cnt int
	for _, std := range repo.db.students {
		if repo.match(filter, std) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, std student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[std.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	return nil
}
