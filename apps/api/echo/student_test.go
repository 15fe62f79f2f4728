package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/student"
	"github.com/trezcool/tuition/tests"
)

func Test_studentApi_crud(t *testing.T) {
	f := setup(t)
	ana := f.createAdmin(t, "Ana", "ana@test.cd", false)
	anaToken := getToken(t, ana)
	grpA := testutil.CreateGroup(t, f.repos.Groups, "Class A", ana.ID)
	grpB := testutil.CreateGroup(t, f.repos.Groups, "Class B")
	outsider := testutil.CreateStudent(t, f.repos.Students, grpB.ID, "Dan", "")

	groupErr := marshalObj(t, map[string]string{"group_id": "group not found"})

	runHTTPTests(t, f, []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "empty", path: "/v1/students", token: anaToken, wantCode: http.StatusOK, wantData: marshalList(t)},
		{
			name: "create in another group", method: http.MethodPost, path: "/v1/students", token: anaToken,
			body:     marshalObj(t, student.NewStudent{GroupID: grpB.ID, Name: "Eve"}),
			wantCode: http.StatusBadRequest, wantData: groupErr,
		},
		{
			name: "import in another group", method: http.MethodPost, path: "/v1/students/import", token: anaToken,
			body:     marshalObj(t, student.Import{GroupID: grpB.ID, Rows: []student.ImportRow{{Name: "Eve"}}}),
			wantCode: http.StatusBadRequest, wantData: groupErr,
		},
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/students", token: anaToken,
			body:     marshalObj(t, student.NewStudent{GroupID: grpA.ID, Name: "Eve", Email: "eve"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "out of scope", path: "/v1/students/" + outsider.ID, token: anaToken, wantCode: http.StatusNotFound},
		{name: "out of scope plan", path: "/v1/students/" + outsider.ID + "/plan", token: anaToken, wantCode: http.StatusNotFound},
	})

	var eve student.Student
	t.Run("create", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/students", anaToken, marshalObj(t, student.NewStudent{
			GroupID: grpA.ID, Name: " Eve ", Email: "EVE@test.cd",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &eve)
		assert.Equal(t, "Eve", eve.Name)
		assert.Equal(t, "eve@test.cd", eve.Email.String)
		assert.False(t, eve.Phone.Valid)
	})

	t.Run("import", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/students/import", anaToken, marshalObj(t, student.Import{
			GroupID: grpA.ID,
			Rows:    []student.ImportRow{{Name: "eve", Email: "eve@test.cd"}, {Name: "Finn"}},
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res student.ImportResult
		decode(t, rec, &res)
		assert.Equal(t, 1, res.Skipped)
		require.Len(t, res.Imported, 1)
		assert.Equal(t, "Finn", res.Imported[0].Name)
	})

	t.Run("query", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students?search=fin", anaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stds []student.Student
		decode(t, rec, &stds)
		require.Len(t, stds, 1)
		assert.Equal(t, "Finn", stds[0].Name)
	})

	t.Run("update", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/v1/students/"+eve.ID, anaToken, []byte(`{"phone": "+243 800", "email": ""}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var std student.Student
		decode(t, rec, &std)
		assert.Equal(t, "Eve", std.Name)
		assert.Equal(t, "+243 800", std.Phone.String)
		assert.False(t, std.Email.Valid)

		rec = f.do(http.MethodPut, "/v1/students/"+eve.ID, anaToken, marshalObj(t, map[string]string{"group_id": grpB.ID}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: groupErr}, rec)
	})
}

func Test_studentApi_plan(t *testing.T) {
	f := setup(t)
	ana := f.createAdmin(t, "Ana", "ana@test.cd", false)
	anaToken := getToken(t, ana)
	grp := testutil.CreateGroup(t, f.repos.Groups, "Class A", ana.ID)
	other := testutil.CreateGroup(t, f.repos.Groups, "Class B")
	std := testutil.CreateStudent(t, f.repos.Students, grp.ID, "Eve", "eve@test.cd")
	planA := testutil.CreatePlan(t, f.repos.Plans, grp.ID, "A", 3, "150.00", core.Date(2024, time.January, 15))
	planB := testutil.CreatePlan(t, f.repos.Plans, grp.ID, "B", 6, "120.00", core.Date(2024, time.January, 15))
	foreign := testutil.CreatePlan(t, f.repos.Plans, other.ID, "C", 2, "80.00", core.Date(2024, time.January, 15))

	planPath := "/v1/students/" + std.ID + "/plan"
	assign := func(planID string) []byte {
		return marshalObj(t, enrollment.AssignPlan{PlanID: planID})
	}

	runHTTPTests(t, f, []httpTest{
		{name: "no plan yet", path: planPath, token: anaToken, wantCode: http.StatusNotFound},
		{name: "invalid plan id", method: http.MethodPut, path: planPath, token: anaToken, body: assign("nope"), wantCode: http.StatusBadRequest},
		{name: "plan of another group", method: http.MethodPut, path: planPath, token: anaToken, body: assign(foreign.ID), wantCode: http.StatusBadRequest},
	})

	t.Run("assign", func(t *testing.T) {
		rec := f.do(http.MethodPut, planPath, anaToken, assign(planA.ID))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res enrollment.Result
		decode(t, rec, &res)
		assert.True(t, res.Changed)
		assert.Equal(t, planA.ID, res.Association.PlanID)
		require.Len(t, res.Installments, 3)

		rec = f.do(http.MethodGet, planPath, anaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var assoc enrollment.Association
		decode(t, rec, &assoc)
		assert.Equal(t, planA.ID, assoc.PlanID)

		// pay the first one, then move to plan B: the payment is carried over
		rec = f.do(http.MethodPut, "/v1/installments/"+res.Installments[0].ID+"/payment", anaToken, []byte(`{"paid": true, "payment_date": "2024-01-15"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(http.MethodPut, planPath, anaToken, assign(planB.ID))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &res)
		assert.Equal(t, 1, res.Preserved)
		require.Len(t, res.Installments, 6)
		assert.Equal(t, installment.StatusPaid, res.Installments[0].Status)
	})

	t.Run("installments", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students/"+std.ID+"/installments", anaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var insts []installment.Installment
		decode(t, rec, &insts)
		require.Len(t, insts, 6)
		// as of 2024-02-20
		assert.Equal(t, installment.StatusPaid, insts[0].Status)
		assert.Equal(t, installment.StatusOverdue, insts[1].Status)
		assert.Equal(t, installment.StatusOpen, insts[2].Status)
		for _, inst := range insts {
			assert.Equal(t, planB.ID, inst.PlanID)
			assert.Equal(t, "120", inst.Value.String())
		}
	})

	t.Run("unassign refused with paid installments", func(t *testing.T) {
		rec := f.do(http.MethodDelete, planPath, anaToken)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("delete keeps the paid history", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/students/"+std.ID+"/deletion-check", anaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var chk deletion.Check
		decode(t, rec, &chk)
		assert.True(t, chk.CanDelete)
		assert.NotEmpty(t, chk.Warning)

		rec = f.do(http.MethodDelete, "/v1/students/"+std.ID, anaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		insts, err := f.repos.Installments.QueryInstallments(context.Background(), installment.QueryFilter{StudentID: std.ID})
		require.NoError(t, err)
		require.Len(t, insts, 1)
		assert.True(t, insts[0].IsPaid())

		// plan B now holds paid history and cannot be deleted
		rec = f.do(http.MethodDelete, "/v1/plans/"+planB.ID, anaToken)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}

func Test_studentApi_fullErase(t *testing.T) {
	f := setup(t)
	root := f.createAdmin(t, "Root", "root@test.cd", true)
	grp := testutil.CreateGroup(t, f.repos.Groups, "Class A")
	std := testutil.CreateStudent(t, f.repos.Students, grp.ID, "Eve", "")
	p := testutil.CreatePlan(t, f.repos.Plans, grp.ID, "A", 3, "150.00", core.Date(2024, time.January, 15))
	res, err := f.svcs.Enrollment.Assign(context.Background(), std.ID, p.ID)
	require.NoError(t, err)
	testutil.Pay(t, f.repos.Installments, res.Installments[0].ID, core.Date(2024, time.January, 15))

	rec := f.do(http.MethodDelete, "/v1/students/"+std.ID+"?full_erase=true", getToken(t, root))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	n, err := f.repos.Installments.CountInstallments(context.Background(), installment.QueryFilter{PlanID: p.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	rec = f.do(http.MethodDelete, "/v1/plans/"+p.ID, getToken(t, root))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
