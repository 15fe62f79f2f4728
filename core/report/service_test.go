package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

func TestPaymentStats(t *testing.T) {
	now := time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC)
	money := func(s string) decimal.Decimal { return testutil.Money(t, s) }
	insts := []installment.Installment{
		// paid last month
		{DueDate: core.Date(2024, time.January, 15), Value: money("100"), Status: installment.StatusPaid, PaymentDate: null.TimeFrom(core.Date(2024, time.January, 14))},
		// paid this month, late
		{DueDate: core.Date(2024, time.January, 20), Value: money("50"), Status: installment.StatusPaid, PaymentDate: null.TimeFrom(core.Date(2024, time.February, 2))},
		// overdue this month, stored as open
		{DueDate: core.Date(2024, time.February, 15), Value: money("100"), Status: installment.StatusOpen},
		// overdue last month
		{DueDate: core.Date(2024, time.January, 25), Value: money("30"), Status: installment.StatusOverdue},
		// due today: still open
		{DueDate: core.Date(2024, time.February, 20), Value: money("20"), Status: installment.StatusOpen},
		// next month
		{DueDate: core.Date(2024, time.March, 15), Value: money("100"), Status: installment.StatusOpen},
	}

	stats := paymentStats(insts, now)
	assert.Equal(t, 6, stats.TotalInstallments)
	assert.Equal(t, 2, stats.Paid)
	assert.Equal(t, 2, stats.Overdue)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, "400.00", stats.TotalAmount.StringFixed(2))
	assert.Equal(t, "150.00", stats.PaidAmount.StringFixed(2))
	assert.Equal(t, "130.00", stats.OverdueAmount.StringFixed(2))
	assert.Equal(t, "120.00", stats.MonthlyReceivable.StringFixed(2))
	assert.Equal(t, "50.00", stats.PaidThisMonth.StringFixed(2))
	assert.Equal(t, "33.33", stats.PaymentPercentage.StringFixed(2))

	empty := paymentStats(nil, now)
	assert.Zero(t, empty.TotalInstallments)
	assert.True(t, empty.PaymentPercentage.IsZero())
}

func TestService_Summary(t *testing.T) {
	db := memdb.Open()
	grps := memdb.NewGroupRepository(db)
	stds := memdb.NewStudentRepository(db)
	plans := memdb.NewPlanRepository(db)
	insts := memdb.NewInstallmentRepository(db)
	svc := NewService(grps, stds, insts)
	ctx := context.Background()
	now := time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC)

	grpA := testutil.CreateGroup(t, grps, "Class A", "admin-1")
	grpB := testutil.CreateGroup(t, grps, "Class B")
	ana := testutil.CreateStudent(t, stds, grpA.ID, "Ana", "")
	testutil.CreateStudent(t, stds, grpA.ID, "Bob", "")
	carla := testutil.CreateStudent(t, stds, grpB.ID, "Carla", "")

	pA := testutil.CreatePlan(t, plans, grpA.ID, "A", 3, "150.00", core.Date(2024, time.January, 15))
	pB := testutil.CreatePlan(t, plans, grpB.ID, "B", 2, "80.00", core.Date(2024, time.February, 1))
	anaInsts := testutil.CreateInstallments(t, insts, pA, ana.ID)
	testutil.CreateInstallments(t, insts, pB, carla.ID)
	testutil.Pay(t, insts, anaInsts[0].ID, core.Date(2024, time.January, 15))

	t.Run("unrestricted", func(t *testing.T) {
		sum, err := svc.Summary(ctx, core.Unrestricted(), now)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.TotalGroups)
		assert.Equal(t, 3, sum.TotalStudents)
		assert.Len(t, sum.StudentsPerGroup, 2)
		assert.Equal(t, 5, sum.Payments.TotalInstallments)
		assert.Equal(t, 1, sum.Payments.Paid)
		assert.Equal(t, 2, sum.Payments.Overdue) // Ana 02-15 & Carla 02-01
		assert.Equal(t, "610.00", sum.Payments.TotalAmount.StringFixed(2))
	})

	t.Run("group admin", func(t *testing.T) {
		sum, err := svc.Summary(ctx, core.Scope{AdministratorID: "admin-1", GroupIDs: []string{grpA.ID}}, now)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.TotalGroups)
		assert.Equal(t, 2, sum.TotalStudents)
		require.Len(t, sum.StudentsPerGroup, 1)
		assert.Equal(t, group.StudentCount{GroupID: grpA.ID, GroupName: "Class A", Students: 2}, sum.StudentsPerGroup[0])
		assert.Equal(t, 3, sum.Payments.TotalInstallments)
		assert.Equal(t, "33.33", sum.Payments.PaymentPercentage.StringFixed(2))
	})

	t.Run("no group", func(t *testing.T) {
		sum, err := svc.Summary(ctx, core.Scope{AdministratorID: "admin-2"}, now)
		require.NoError(t, err)
		assert.Zero(t, sum.TotalGroups)
		assert.Zero(t, sum.TotalStudents)
		assert.Zero(t, sum.Payments.TotalInstallments)
	})
}

func TestPaymentStats_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(PaymentStats{
		TotalInstallments: 2,
		TotalAmount:       decimal.NewFromInt(400),
		PaymentPercentage: decimal.New(33333, -3),
	})
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"total_installments":2`)
	assert.Contains(t, s, `"total_amount":"400.00"`)
	assert.Contains(t, s, `"paid_amount":"0.00"`)
	assert.Contains(t, s, `"payment_percentage":"33.33"`)
}
