package memdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
)

var errUnscopedDelete = errors.New("refusing to delete installments without an installment, plan or student filter")

type installmentRepository struct {
	db *DB
}

var _ installment.Repository = (*installmentRepository)(nil) // interface compliance check

func NewInstallmentRepository(db *DB) installment.Repository {
	return &installmentRepository{db: db}
}

// match must be called with the db lock held.
func (repo *installmentRepository) match(filter installment.QueryFilter, inst installment.Installment) bool {
	if filter.IDs != nil && !inSet(filter.IDs, inst.ID) {
		return false
	}
	if filter.PlanID != "" && inst.PlanID != filter.PlanID {
		return false
	}
	if filter.StudentID != "" && inst.StudentID != filter.StudentID {
		return false
	}
	if filter.GroupIDs != nil && !inSet(filter.GroupIDs, repo.db.plans[inst.PlanID].GroupID) {
		return false
	}
	if !filter.MatchStatus(inst.Status) {
		return false
	}
	if !filter.DueFrom.IsZero() && inst.DueDate.Before(filter.DueFrom) {
		return false
	}
	if !filter.DueBefore.IsZero() && !inst.DueDate.Before(filter.DueBefore) {
		return false
	}
	if !filter.PaidFrom.IsZero() && (!inst.PaymentDate.Valid || inst.PaymentDate.Time.Before(filter.PaidFrom)) {
		return false
	}
	if !filter.PaidTo.IsZero() && (!inst.PaymentDate.Valid || inst.PaymentDate.Time.After(filter.PaidTo)) {
		return false
	}
	return true
}

func (repo *installmentRepository) CreateInstallments(_ context.Context, drafts []installment.Draft, _ ...core.DBExecutor) ([]installment.Installment, error) {
	for _, d := range drafts {
		if err := installment.CheckPayment(d.Status, d.PaymentDate); err != nil {
			return nil, err
		}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	insts := make([]installment.Installment, 0, len(drafts))
	for _, d := range drafts {
		inst := installment.Installment{
			ID:          newID(),
			PlanID:      d.PlanID,
			StudentID:   d.StudentID,
			Number:      d.Number,
			DueDate:     d.DueDate,
			Value:       d.Value,
			Status:      d.Status,
			PaymentDate: d.PaymentDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		repo.db.installments[inst.ID] = inst
		insts = append(insts, inst)
	}
	return insts, nil
}

func (repo *installmentRepository) GetInstallment(_ context.Context, id string, _ ...core.DBExecutor) (installment.Installment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if inst, ok := repo.db.installments[id]; ok {
		return inst, nil
	}
	return installment.Installment{}, installment.ErrNotFound
}

func (repo *installmentRepository) QueryInstallments(_ context.Context, filter installment.QueryFilter, _ ...core.DBExecutor) ([]installment.Installment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	insts := make([]installment.Installment, 0)
	for _, inst := range repo.db.installments {
		if repo.match(filter, inst) {
			insts = append(insts, inst)
		}
	}
	sort.Slice(insts, func(i, j int) bool {
		if insts[i].StudentID != insts[j].StudentID {
			return insts[i].StudentID < insts[j].StudentID
		}
		if insts[i].Number != insts[j].Number {
			return insts[i].Number < insts[j].Number
		}
		return insts[i].DueDate.Before(insts[j].DueDate)
	})
	return insts, nil
}

func (repo *installmentRepository) CountInstallments(_ context.Context, filter installment.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cnt int
	for _, inst := range repo.db.installments {
		if repo.match(filter, inst) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *installmentRepository) UpdatePayment(_ context.Context, id string, status installment.Status, paymentDate null.Time, _ ...core.DBExecutor) (installment.Installment, error) {
	if err := installment.CheckPayment(status, paymentDate); err != nil {
		return installment.Installment{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	inst, ok := repo.db.installments[id]
	if !ok {
		return installment.Installment{}, installment.ErrNotFound
	}
	inst.Status = status
	inst.PaymentDate = paymentDate
	inst.UpdatedAt = time.Now().UTC()
	repo.db.installments[id] = inst
	return inst, nil
}

func (repo *installmentRepository) UpdateStatuses(_ context.Context, ids []string, status installment.Status, _ ...core.DBExecutor) (int, error) {
	if err := installment.CheckPayment(status, null.Time{}); err != nil {
		return 0, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	now := time.Now().UTC()
	for _, id := range ids {
		inst, ok := repo.db.installments[id]
		if !ok || inst.IsPaid() {
			continue
		}
		inst.Status = status
		inst.UpdatedAt = now
		repo.db.installments[id] = inst
		cnt++
	}
	return cnt, nil
}

func (repo *installmentRepository) DeleteInstallments(_ context.Context, filter installment.QueryFilter, _ ...core.DBExecutor) (int, error) {
	if !filter.IsScoped() {
		return 0, errUnscopedDelete
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for id, inst := range repo.db.installments {
		if repo.match(filter, inst) {
			delete(repo.db.installments, id)
			cnt++
		}
	}
	return cnt, nil
}
