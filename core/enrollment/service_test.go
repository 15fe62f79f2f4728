package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

var errBoom = errors.New("boom")

// failingInstallments fails every installment creation.
type failingInstallments struct {
	installment.Repository
}

func (failingInstallments) CreateInstallments(context.Context, []installment.Draft, ...core.DBExecutor) ([]installment.Installment, error) {
	return nil, errBoom
}

type fixture struct {
	db     *memdb.DB
	assocs enrollment.Repository
	insts  installment.Repository
	stds   student.Repository
	plans  plan.Repository
	grp    group.Group
	std    student.Student
	planA  plan.Plan // 3 x 150.00 from 2024-01-15
	planB  plan.Plan // 6 x 120.00 from 2024-01-15
	svc    *enrollment.Service
}

func setup(t *testing.T) fixture {
	db := memdb.Open()
	f := fixture{
		db:     db,
		assocs: memdb.NewEnrollmentRepository(db),
		insts:  memdb.NewInstallmentRepository(db),
		stds:   memdb.NewStudentRepository(db),
		plans:  memdb.NewPlanRepository(db),
	}
	f.grp = testutil.CreateGroup(t, memdb.NewGroupRepository(db), "Class A")
	f.std = testutil.CreateStudent(t, f.stds, f.grp.ID, "Ana", "ana@test.cd")
	f.planA = testutil.CreatePlan(t, f.plans, f.grp.ID, "Plan A", 3, "150.00", core.Date(2024, time.January, 15))
	f.planB = testutil.CreatePlan(t, f.plans, f.grp.ID, "Plan B", 6, "120.00", core.Date(2024, time.January, 15))
	f.svc = enrollment.NewService(f.assocs, f.stds, f.plans, f.insts, memdb.NewTransactor(db))
	return f
}

func (f fixture) studentInstallments(t *testing.T) []installment.Installment {
	insts, err := f.insts.QueryInstallments(context.Background(), installment.QueryFilter{StudentID: f.std.ID})
	require.NoError(t, err)
	return insts
}

func TestService_Assign_fresh(t *testing.T) {
	f := setup(t)

	res, err := f.svc.Assign(context.Background(), f.std.ID, f.planA.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Zero(t, res.Preserved)
	assert.Equal(t, f.planA.ID, res.Association.PlanID)
	require.Len(t, res.Installments, 3)

	for i, inst := range f.studentInstallments(t) {
		assert.Equal(t, f.planA.ID, inst.PlanID)
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, core.AddMonths(f.planA.StartDate, i), inst.DueDate)
		assert.Equal(t, installment.StatusOpen, inst.Status)
	}

	cur, err := f.svc.Current(context.Background(), f.std.ID)
	require.NoError(t, err)
	assert.Equal(t, f.planA.ID, cur.PlanID)
}

func TestService_Assign_samePlanIsNoop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)

	again, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Len(t, again.Installments, 3)
	assert.ElementsMatch(t, ids(first.Installments), ids(again.Installments))
	assert.Len(t, f.studentInstallments(t), 3)
}

func TestService_Assign_reassignPreservesPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)
	paidOn := core.Date(2024, time.January, 12)
	testutil.Pay(t, f.insts, res.Installments[0].ID, paidOn)

	res, err = f.svc.Assign(ctx, f.std.ID, f.planB.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Preserved)

	insts := f.studentInstallments(t)
	require.Len(t, insts, 6)
	for i, inst := range insts {
		assert.Equal(t, f.planB.ID, inst.PlanID, "old plan rows must be gone")
		assert.True(t, testutil.Money(t, "120.00").Equal(inst.Value))
		if i == 0 {
			assert.Equal(t, installment.StatusPaid, inst.Status)
			assert.Equal(t, null.TimeFrom(paidOn), inst.PaymentDate)
		} else {
			assert.Equal(t, installment.StatusOpen, inst.Status)
		}
	}

	cur, err := f.svc.Current(ctx, f.std.ID)
	require.NoError(t, err)
	assert.Equal(t, f.planB.ID, cur.PlanID)
}

func TestService_Assign_reassignKeepsUnmatchedPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	planC := testutil.CreatePlan(t, f.plans, f.grp.ID, "Plan C", 2, "99.90", core.Date(2024, time.June, 1))

	res, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)
	paid := testutil.Pay(t, f.insts, res.Installments[1].ID, core.Date(2024, time.February, 15))

	res, err = f.svc.Assign(ctx, f.std.ID, planC.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Preserved)

	insts := f.studentInstallments(t)
	require.Len(t, insts, 3) // 2 new + the old paid one kept for history
	kept, err := f.insts.GetInstallment(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, f.planA.ID, kept.PlanID)
	assert.Equal(t, installment.StatusPaid, kept.Status)
}

func TestService_Assign_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateGroup(t, memdb.NewGroupRepository(f.db), "Class B")
	otherPlan := testutil.CreatePlan(t, f.plans, other.ID, "Other", 2, "10.00", core.Date(2024, time.January, 1))

	_, err := f.svc.Assign(ctx, f.std.ID, otherPlan.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, "payment_plan_id", vErr.Fields[0].Field)

	_, err = f.svc.Assign(ctx, "unknown", f.planA.ID)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	_, err = f.svc.Assign(ctx, f.std.ID, "unknown")
	assert.Equal(t, plan.ErrNotFound, errors.Cause(err))

	assert.Empty(t, f.studentInstallments(t))
}

func TestService_Assign_rollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)
	testutil.Pay(t, f.insts, res.Installments[0].ID, core.Date(2024, time.January, 15))
	before := f.studentInstallments(t)

	failing := enrollment.NewService(f.assocs, f.stds, f.plans, failingInstallments{f.insts}, memdb.NewTransactor(f.db))
	_, err = failing.Assign(ctx, f.std.ID, f.planB.ID)
	require.Equal(t, errBoom, errors.Cause(err))

	// nothing happened: same association & same installments
	cur, err := f.svc.Current(ctx, f.std.ID)
	require.NoError(t, err)
	assert.Equal(t, f.planA.ID, cur.PlanID)
	assert.Equal(t, before, f.studentInstallments(t))
}

func TestService_Unassign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	err := f.svc.Unassign(ctx, f.std.ID)
	assert.Equal(t, enrollment.ErrNotAssigned, errors.Cause(err))

	res, err := f.svc.Assign(ctx, f.std.ID, f.planA.ID)
	require.NoError(t, err)
	testutil.Pay(t, f.insts, res.Installments[0].ID, core.Date(2024, time.January, 15))

	err = f.svc.Unassign(ctx, f.std.ID)
	require.True(t, core.IsRuleError(err), "got %v", err)
	assert.Len(t, f.studentInstallments(t), 3)

	// without any payment
	_, err = f.svc.Assign(ctx, f.std.ID, f.planB.ID)
	require.NoError(t, err)
	paid, err := f.insts.QueryInstallments(ctx, installment.QueryFilter{StudentID: f.std.ID, PlanID: f.planB.ID, Statuses: []installment.Status{installment.StatusPaid}})
	require.NoError(t, err)
	require.Len(t, paid, 1) // carried over
	_, err = f.insts.UpdatePayment(ctx, paid[0].ID, installment.StatusOpen, null.Time{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Unassign(ctx, f.std.ID))
	assert.Empty(t, f.studentInstallments(t))
	_, err = f.svc.Current(ctx, f.std.ID)
	assert.Equal(t, enrollment.ErrNotAssigned, errors.Cause(err))
}

func ids(insts []installment.Installment) []string {
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.ID)
	}
	return out
}
