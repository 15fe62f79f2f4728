package deletion_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

type fixture struct {
	grps   group.Repository
	stds   student.Repository
	plans  plan.Repository
	assocs enrollment.Repository
	insts  installment.Repository
	enroll *enrollment.Service
	svc    *deletion.Service
}

func setup(t *testing.T) fixture {
	db := memdb.Open()
	tx := memdb.NewTransactor(db)
	f := fixture{
		grps:   memdb.NewGroupRepository(db),
		stds:   memdb.NewStudentRepository(db),
		plans:  memdb.NewPlanRepository(db),
		assocs: memdb.NewEnrollmentRepository(db),
		insts:  memdb.NewInstallmentRepository(db),
	}
	f.enroll = enrollment.NewService(f.assocs, f.stds, f.plans, f.insts, tx)
	f.svc = deletion.NewService(f.grps, f.stds, f.plans, f.assocs, f.insts, tx)

	testutil.MockNow(t, &deletion.NowFunc, time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC))
	return f
}

func (f fixture) assign(t *testing.T, studentID, planID string) []installment.Installment {
	res, err := f.enroll.Assign(context.Background(), studentID, planID)
	require.NoError(t, err)
	return res.Installments
}

func TestService_group(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	adm := "admin-id"
	empty := testutil.CreateGroup(t, f.grps, "Empty", adm)
	busy := testutil.CreateGroup(t, f.grps, "Busy")
	testutil.CreateStudent(t, f.stds, busy.ID, "Ana", "")
	testutil.CreateStudent(t, f.stds, busy.ID, "Bob", "")
	testutil.CreatePlan(t, f.plans, busy.ID, "2024", 10, "100.00", core.Date(2024, time.January, 5))

	chk, err := f.svc.Check(ctx, deletion.EntityGroup, busy.ID)
	require.NoError(t, err)
	assert.False(t, chk.CanDelete)
	assert.NotEmpty(t, chk.BlockReason)
	require.Len(t, chk.DependentItems, 2)
	assert.Equal(t, "students", chk.DependentItems[0].Type)
	assert.Equal(t, 2, chk.DependentItems[0].Count)
	assert.Contains(t, chk.DependentItems[0].Details, "Ana")
	assert.Contains(t, chk.DependentItems[0].Details, "Bob")
	assert.Equal(t, "payment_plans", chk.DependentItems[1].Type)
	assert.Equal(t, 1, chk.DependentItems[1].Count)

	_, err = f.svc.Delete(ctx, deletion.EntityGroup, busy.ID, true)
	require.True(t, core.IsRuleError(err), "got %v", err)
	_, err = f.grps.GetGroup(ctx, busy.ID)
	require.NoError(t, err, "blocked group must survive")

	chk, err = f.svc.Check(ctx, deletion.EntityGroup, empty.ID)
	require.NoError(t, err)
	assert.True(t, chk.CanDelete)
	assert.Empty(t, chk.DependentItems)

	res, err := f.svc.Delete(ctx, deletion.EntityGroup, empty.ID, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	_, err = f.grps.GetGroup(ctx, empty.ID)
	assert.Equal(t, group.ErrNotFound, errors.Cause(err))
	ids, err := f.grps.AdministeredGroupIDs(ctx, adm)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestService_plan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	grp := testutil.CreateGroup(t, f.grps, "Class A")
	ana := testutil.CreateStudent(t, f.stds, grp.ID, "Ana", "")
	paidPlan := testutil.CreatePlan(t, f.plans, grp.ID, "Paid", 3, "150.00", core.Date(2024, time.January, 15))
	usedPlan := testutil.CreatePlan(t, f.plans, grp.ID, "Used", 3, "150.00", core.Date(2024, time.January, 15))
	freePlan := testutil.CreatePlan(t, f.plans, grp.ID, "Free", 3, "150.00", core.Date(2024, time.January, 15))

	// Ana paid one installment of paidPlan; Bob is associated with usedPlan
	insts := f.assign(t, ana.ID, paidPlan.ID)
	testutil.Pay(t, f.insts, insts[0].ID, core.Date(2024, time.January, 15))
	other := testutil.CreateStudent(t, f.stds, grp.ID, "Bob", "")
	f.assign(t, other.ID, usedPlan.ID)

	t.Run("paid installments block", func(t *testing.T) {
		chk, err := f.svc.Check(ctx, deletion.EntityPlan, paidPlan.ID)
		require.NoError(t, err)
		assert.False(t, chk.CanDelete)
		require.Len(t, chk.DependentItems, 1)
		assert.Equal(t, "paid_installments", chk.DependentItems[0].Type)
		assert.Equal(t, 1, chk.DependentItems[0].Count)

		_, err = f.svc.Delete(ctx, deletion.EntityPlan, paidPlan.ID, true)
		var rErr *core.RuleError
		require.True(t, errors.As(err, &rErr), "got %v", err)
		assert.Equal(t, chk.BlockReason, rErr.Reason)
		n, err := f.insts.CountInstallments(ctx, installment.QueryFilter{PlanID: paidPlan.ID})
		require.NoError(t, err)
		assert.Equal(t, 3, n, "nothing deleted")
	})

	t.Run("associated students block", func(t *testing.T) {
		chk, err := f.svc.Check(ctx, deletion.EntityPlan, usedPlan.ID)
		require.NoError(t, err)
		assert.False(t, chk.CanDelete)
		assert.NotEmpty(t, chk.Warning)
		require.Len(t, chk.DependentItems, 1)
		assert.Equal(t, "associated_students", chk.DependentItems[0].Type)
		assert.Contains(t, chk.DependentItems[0].Details, "Bob")

		_, err = f.svc.Delete(ctx, deletion.EntityPlan, usedPlan.ID, true)
		require.True(t, core.IsRuleError(err), "got %v", err)
		_, err = f.plans.GetPlan(ctx, usedPlan.ID)
		require.NoError(t, err, "blocked plan must survive")
		_, err = f.assocs.GetAssociation(ctx, other.ID)
		require.NoError(t, err, "association must survive")
		n, err := f.insts.CountInstallments(ctx, installment.QueryFilter{PlanID: usedPlan.ID})
		require.NoError(t, err)
		assert.Equal(t, 3, n, "nothing deleted")
	})

	t.Run("free plan", func(t *testing.T) {
		res, err := f.svc.Delete(ctx, deletion.EntityPlan, freePlan.ID, false)
		require.NoError(t, err)
		assert.True(t, res.Success)
		_, err = f.plans.GetPlan(ctx, freePlan.ID)
		assert.Equal(t, plan.ErrNotFound, errors.Cause(err))
	})
}

func TestService_student(t *testing.T) {
	ctx := context.Background()

	prepare := func(t *testing.T) (fixture, student.Student) {
		f := setup(t)
		grp := testutil.CreateGroup(t, f.grps, "Class A")
		std := testutil.CreateStudent(t, f.stds, grp.ID, "Ana", "")
		p := testutil.CreatePlan(t, f.plans, grp.ID, "2024", 3, "150.00", core.Date(2024, time.January, 15))
		insts := f.assign(t, std.ID, p.ID)
		testutil.Pay(t, f.insts, insts[0].ID, core.Date(2024, time.January, 15))
		// 2024-02-20: #2 (due 02-15) is overdue even though stored as open
		return f, std
	}

	t.Run("check warns", func(t *testing.T) {
		f, std := prepare(t)
		chk, err := f.svc.Check(ctx, deletion.EntityStudent, std.ID)
		require.NoError(t, err)
		assert.True(t, chk.CanDelete)
		assert.NotEmpty(t, chk.Warning)
		require.Len(t, chk.DependentItems, 2)
		assert.Equal(t, core.DependentItem{Type: "paid_installments", Count: 1, Details: "Paid installments"}, chk.DependentItems[0])
		assert.Equal(t, core.DependentItem{Type: "overdue_installments", Count: 1, Details: "Overdue installments"}, chk.DependentItems[1])
	})

	t.Run("keeps paid history", func(t *testing.T) {
		f, std := prepare(t)
		res, err := f.svc.Delete(ctx, deletion.EntityStudent, std.ID, false)
		require.NoError(t, err)
		assert.True(t, res.Success)

		_, err = f.stds.GetStudent(ctx, std.ID)
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
		_, err = f.assocs.GetAssociation(ctx, std.ID)
		assert.Equal(t, enrollment.ErrNotAssigned, errors.Cause(err))

		left, err := f.insts.QueryInstallments(ctx, installment.QueryFilter{StudentID: std.ID})
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, installment.StatusPaid, left[0].Status)
	})

	t.Run("full erase", func(t *testing.T) {
		f, std := prepare(t)
		_, err := f.svc.Delete(ctx, deletion.EntityStudent, std.ID, true)
		require.NoError(t, err)

		n, err := f.insts.CountInstallments(ctx, installment.QueryFilter{StudentID: std.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("two paid, three pending", func(t *testing.T) {
		for _, tt := range []struct {
			fullErase bool
			wantLeft  int
		}{
			{fullErase: false, wantLeft: 2},
			{fullErase: true, wantLeft: 0},
		} {
			f := setup(t)
			grp := testutil.CreateGroup(t, f.grps, "Class A")
			std := testutil.CreateStudent(t, f.stds, grp.ID, "Ana", "")
			p := testutil.CreatePlan(t, f.plans, grp.ID, "2024", 5, "100.00", core.Date(2024, time.January, 15))
			insts := f.assign(t, std.ID, p.ID)
			testutil.Pay(t, f.insts, insts[0].ID, core.Date(2024, time.January, 15))
			testutil.Pay(t, f.insts, insts[1].ID, core.Date(2024, time.February, 15))

			_, err := f.svc.Delete(ctx, deletion.EntityStudent, std.ID, tt.fullErase)
			require.NoError(t, err)

			left, err := f.insts.QueryInstallments(ctx, installment.QueryFilter{StudentID: std.ID})
			require.NoError(t, err)
			require.Len(t, left, tt.wantLeft, "fullErase=%v", tt.fullErase)
			for _, inst := range left {
				assert.Equal(t, installment.StatusPaid, inst.Status)
			}
		}
	})

	t.Run("no installments", func(t *testing.T) {
		f := setup(t)
		grp := testutil.CreateGroup(t, f.grps, "Class A")
		std := testutil.CreateStudent(t, f.stds, grp.ID, "Ana", "")

		chk, err := f.svc.Check(ctx, deletion.EntityStudent, std.ID)
		require.NoError(t, err)
		assert.True(t, chk.CanDelete)
		assert.Empty(t, chk.Warning)
		assert.Empty(t, chk.DependentItems)

		_, err = f.svc.Delete(ctx, deletion.EntityStudent, std.ID, false)
		require.NoError(t, err)
	})
}

func TestService_installment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	grp := testutil.CreateGroup(t, f.grps, "Class A")
	std := testutil.CreateStudent(t, f.stds, grp.ID, "Ana", "")
	p := testutil.CreatePlan(t, f.plans, grp.ID, "2024", 2, "150.00", core.Date(2024, time.January, 15))
	insts := f.assign(t, std.ID, p.ID)
	testutil.Pay(t, f.insts, insts[0].ID, core.Date(2024, time.January, 15))

	_, err := f.svc.Delete(ctx, deletion.EntityInstallment, insts[0].ID, true)
	assert.True(t, core.IsRuleError(err), "got %v", err)

	_, err = f.svc.Delete(ctx, deletion.EntityInstallment, insts[1].ID, false)
	require.NoError(t, err)
	_, err = f.insts.GetInstallment(ctx, insts[1].ID)
	assert.Equal(t, installment.ErrNotFound, errors.Cause(err))
}

func TestService_unknown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Check(ctx, deletion.EntityType("course"), "x")
	assert.Equal(t, deletion.ErrUnknownEntity, errors.Cause(err))

	_, err = f.svc.Check(ctx, deletion.EntityStudent, "missing")
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	_, err = f.svc.Delete(ctx, deletion.EntityGroup, "missing", false)
	assert.Equal(t, group.ErrNotFound, errors.Cause(err))
}
