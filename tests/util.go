package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

// Money parses a decimal amount, failing the test if it is malformed.
func Money(t *testing.T, amount string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	return d
}

// MockNow points nowFunc at a fixed instant for the duration of the test.
func MockNow(t *testing.T, nowFunc *func() time.Time, now time.Time) {
	t.Helper()
	orig := *nowFunc
	*nowFunc = func() time.Time { return now }
	t.Cleanup(func() { *nowFunc = orig })
}

func CreateAdministrator(t *testing.T, repo admin.Repository, name, email, pwd string, isSuper bool) admin.Administrator {
	t.Helper()
	now := time.Now().UTC()
	adm := admin.Administrator{
		Name:         name,
		Email:        email,
		IsSuperAdmin: isSuper,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if pwd != "" {
		require.NoError(t, adm.SetPassword(pwd), "SetPassword()")
	}
	adm, err := repo.CreateAdministrator(context.Background(), adm)
	require.NoError(t, err, "CreateAdministrator()")
	return adm
}

// CreateGroup creates a group administered by adminIDs.
func CreateGroup(t *testing.T, repo group.Repository, name string, adminIDs ...string) group.Group {
	t.Helper()
	now := time.Now().UTC()
	grp, err := repo.CreateGroup(context.Background(), group.Group{Name: name, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err, "CreateGroup()")
	for _, id := range adminIDs {
		require.NoError(t, repo.LinkAdministrator(context.Background(), grp.ID, id), "LinkAdministrator()")
	}
	return grp
}

func CreateStudent(t *testing.T, repo student.Repository, groupID, name, email string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	std := student.Student{GroupID: groupID, Name: name, CreatedAt: now, UpdatedAt: now}
	if email != "" {
		std.Email = null.StringFrom(email)
	}
	stds, err := repo.CreateStudents(context.Background(), []student.Student{std})
	require.NoError(t, err, "CreateStudents()")
	require.Len(t, stds, 1)
	return stds[0]
}

func CreatePlan(t *testing.T, repo plan.Repository, groupID, name string, n int, value string, start time.Time) plan.Plan {
	t.Helper()
	now := time.Now().UTC()
	p, err := repo.CreatePlan(context.Background(), plan.Plan{
		GroupID:           groupID,
		Name:              name,
		TotalInstallments: n,
		InstallmentValue:  Money(t, value),
		StartDate:         core.TruncateDay(start),
		EndDate:           plan.EndDate(start, n),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err, "CreatePlan()")
	return p
}

// CreateInstallments persists the generated installments of studentID under p, without any association.
func CreateInstallments(t *testing.T, repo installment.Repository, p plan.Plan, studentID string) []installment.Installment {
	t.Helper()
	insts, err := repo.CreateInstallments(context.Background(), installment.Generate(p.Schedule(studentID), nil))
	require.NoError(t, err, "CreateInstallments()")
	return insts
}

// Pay marks the installment paid on date, straight through the repository.
func Pay(t *testing.T, repo installment.Repository, id string, date time.Time) installment.Installment {
	t.Helper()
	inst, err := repo.UpdatePayment(context.Background(), id, installment.StatusPaid, null.TimeFrom(core.TruncateDay(date)))
	require.NoError(t, err, "UpdatePayment()")
	return inst
}
