package student_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/student"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

func strPtr(s string) *string {
	return &s
}

func TestService_Import(t *testing.T) {
	db := memdb.Open()
	grps := memdb.NewGroupRepository(db)
	repo := memdb.NewStudentRepository(db)
	svc := student.NewService(repo, memdb.NewEnrollmentRepository(db), memdb.NewTransactor(db))
	ctx := context.Background()

	grpA := testutil.CreateGroup(t, grps, "Class A")
	grpB := testutil.CreateGroup(t, grps, "Class B")
	testutil.CreateStudent(t, repo, grpA.ID, "Ana Silva", "ana@test.cd")
	testutil.CreateStudent(t, repo, grpB.ID, "Bob", "")

	imp := student.Import{
		GroupID: grpA.ID,
		Rows: []student.ImportRow{
			{Name: " ana silva ", Email: "ANA@test.cd"}, // existing, different case
			{Name: "Bob"}, // exists in another group only
			{Name: "Carla", Email: "carla@test.cd", Phone: "+243 800"},
			{Name: "carla", Email: "Carla@Test.cd"}, // duplicate of an earlier row
		},
	}
	require.NoError(t, imp.Validate())

	res, err := svc.Import(ctx, imp)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Imported, 2)
	assert.Equal(t, "Bob", res.Imported[0].Name)
	assert.False(t, res.Imported[0].Email.Valid)
	assert.Equal(t, "Carla", res.Imported[1].Name)
	assert.Equal(t, "+243 800", res.Imported[1].Phone.String)

	n, err := repo.CountStudents(ctx, student.QueryFilter{GroupIDs: []string{grpA.ID}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("everything skipped", func(t *testing.T) {
		res, err := svc.Import(ctx, imp)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Skipped)
		assert.Empty(t, res.Imported)
	})
}

func TestImport_Validate(t *testing.T) {
	imp := student.Import{GroupID: "not-a-uuid", Rows: []student.ImportRow{{Name: " "}}}
	assert.Error(t, imp.Validate())

	imp = student.Import{GroupID: "0b0b4b5e-6c54-4b8a-a2a0-0c0d8f4c1b7e"}
	assert.Error(t, imp.Validate(), "rows are required")
}

func TestService_Update(t *testing.T) {
	db := memdb.Open()
	grps := memdb.NewGroupRepository(db)
	repo := memdb.NewStudentRepository(db)
	assocs := memdb.NewEnrollmentRepository(db)
	svc := student.NewService(repo, assocs, memdb.NewTransactor(db))
	ctx := context.Background()

	grpA := testutil.CreateGroup(t, grps, "Class A")
	grpB := testutil.CreateGroup(t, grps, "Class B")
	ana := testutil.CreateStudent(t, repo, grpA.ID, "Ana", "ana@test.cd")
	bob := testutil.CreateStudent(t, repo, grpA.ID, "Bob", "bob@test.cd")
	_, err := assocs.CreateAssociation(ctx, enrollment.Association{StudentID: bob.ID, PlanID: "plan-id", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	t.Run("fields & group change", func(t *testing.T) {
		us := student.UpdateStudent{GroupID: grpB.ID, Email: strPtr(""), Phone: strPtr(" 123 ")}
		require.NoError(t, us.Validate(ana))

		std, err := svc.Update(ctx, ana, us)
		require.NoError(t, err)
		assert.Equal(t, grpB.ID, std.GroupID)
		assert.Equal(t, "Ana", std.Name)
		assert.False(t, std.Email.Valid, "empty email clears it")
		assert.Equal(t, "123", std.Phone.String)
	})

	t.Run("group change refused with a plan", func(t *testing.T) {
		us := student.UpdateStudent{GroupID: grpB.ID, Name: "Bobby"}
		require.NoError(t, us.Validate(bob))

		_, err := svc.Update(ctx, bob, us)
		assert.True(t, core.IsRuleError(err), "got %v", err)

		std, err := repo.GetStudent(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bob", std.Name)
		assert.Equal(t, grpA.ID, std.GroupID)
	})

	t.Run("invalid email", func(t *testing.T) {
		us := student.UpdateStudent{Email: strPtr("nope")}
		err := us.Validate(bob)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "got %v", err)
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})
}
