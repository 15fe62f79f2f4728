package plan_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

func TestEndDate(t *testing.T) {
	assert.Equal(t, core.Date(2024, time.March, 15), plan.EndDate(core.Date(2024, time.January, 15), 3))
	assert.Equal(t, core.Date(2024, time.February, 29), plan.EndDate(core.Date(2024, time.January, 31), 2))
	assert.Equal(t, core.Date(2024, time.January, 15), plan.EndDate(core.Date(2024, time.January, 15), 0))
}

func TestNewPlan_Validate(t *testing.T) {
	valid := func() plan.NewPlan {
		return plan.NewPlan{
			GroupID:           "0B0B4B5E-6C54-4B8A-A2A0-0C0D8F4C1B7E",
			Name:              " 2024 ",
			TotalInstallments: 10,
			InstallmentValue:  testutil.Money(t, "150.00"),
			StartDate:         "2024-01-15",
		}
	}

	np := valid()
	require.NoError(t, np.Validate())
	assert.Equal(t, "0b0b4b5e-6c54-4b8a-a2a0-0c0d8f4c1b7e", np.GroupID)
	assert.Equal(t, "2024", np.Name)

	tests := []struct {
		name   string
		mutate func(np *plan.NewPlan)
	}{
		{"no group", func(np *plan.NewPlan) { np.GroupID = "" }},
		{"blank name", func(np *plan.NewPlan) { np.Name = "  " }},
		{"no installments", func(np *plan.NewPlan) { np.TotalInstallments = 0 }},
		{"zero value", func(np *plan.NewPlan) { np.InstallmentValue = testutil.Money(t, "0") }},
		{"sub-cent value", func(np *plan.NewPlan) { np.InstallmentValue = testutil.Money(t, "1.005") }},
		{"bad start", func(np *plan.NewPlan) { np.StartDate = "2024-02-30" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			tt.mutate(&np)
			assert.Error(t, np.Validate())
		})
	}
}

func TestService(t *testing.T) {
	db := memdb.Open()
	grps := memdb.NewGroupRepository(db)
	repo := memdb.NewPlanRepository(db)
	assocs := memdb.NewEnrollmentRepository(db)
	svc := plan.NewService(repo, assocs, memdb.NewTransactor(db))
	ctx := context.Background()

	grpA := testutil.CreateGroup(t, grps, "Class A")
	grpB := testutil.CreateGroup(t, grps, "Class B")

	p, err := svc.Create(ctx, plan.NewPlan{
		GroupID:           grpA.ID,
		Name:              "2024",
		TotalInstallments: 10,
		InstallmentValue:  testutil.Money(t, "150"),
		StartDate:         "2024-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Date(2024, time.January, 31), p.StartDate)
	assert.Equal(t, core.Date(2024, time.October, 31), p.EndDate)
	assert.Equal(t, "1500.00", p.Total().StringFixed(2))

	t.Run("update recomputes the end date", func(t *testing.T) {
		up := plan.UpdatePlan{TotalInstallments: 2}
		require.NoError(t, up.Validate(p))
		upd, err := svc.Update(ctx, p, up)
		require.NoError(t, err)
		assert.Equal(t, core.Date(2024, time.February, 29), upd.EndDate)
		assert.Equal(t, p.Name, upd.Name)
		p = upd
	})

	t.Run("group change", func(t *testing.T) {
		up := plan.UpdatePlan{GroupID: grpB.ID}
		require.NoError(t, up.Validate(p))
		moved, err := svc.Update(ctx, p, up)
		require.NoError(t, err, "no student yet")
		assert.Equal(t, grpB.ID, moved.GroupID)

		_, err = assocs.CreateAssociation(ctx, enrollment.Association{StudentID: "std", PlanID: p.ID, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)

		up = plan.UpdatePlan{GroupID: grpA.ID}
		require.NoError(t, up.Validate(moved))
		_, err = svc.Update(ctx, moved, up)
		var rErr *core.RuleError
		require.True(t, errors.As(err, &rErr), "got %v", err)
		assert.Equal(t, []core.DependentItem{{Type: "students", Count: 1}}, rErr.DependentItems)

		got, err := svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, grpB.ID, got.GroupID)
	})

	_, err = svc.Get(ctx, "missing")
	assert.Equal(t, plan.ErrNotFound, errors.Cause(err))
}

func TestPlan_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(plan.Plan{ID: "p1", TotalInstallments: 3, InstallmentValue: decimal.New(995, -1)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"installment_value":"99.50"`)
	assert.Contains(t, string(data), `"total_installments":3`)
}
