package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/tuition/apps/api/echo"
	"github.com/trezcool/tuition/apps/deps"
	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/services/email"
	"github.com/trezcool/tuition/services/logger"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/tests"
)

const testPwd = "S3cure!Pass"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// fixture holds a server over a fresh in-memory database.
type fixture struct {
	app   Server
	repos deps.Repositories
	svcs  deps.Services
}

func setup(t *testing.T) fixture {
	repos, tx := deps.MemoryRepositories(memdb.Open())
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.Conf)
	svcs := deps.NewServices(repos, tx, emailsvc.NewConsoleServiceMock(logger), core.Conf)

	testutil.MockNow(t, &installment.NowFunc, time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC))

	app := NewServer(&Options{
		DisableReqLogs: true,
		Logger:         logger,
		AdminSvc:       svcs.Admin,
		GroupSvc:       svcs.Group,
		StudentSvc:     svcs.Student,
		PlanSvc:        svcs.Plan,
		EnrollmentSvc:  svcs.Enrollment,
		InstallmentSvc: svcs.Installment,
		DeletionSvc:    svcs.Deletion,
		ReportSvc:      svcs.Report,
	})
	return fixture{app: app, repos: repos, svcs: svcs}
}

func (f fixture) createAdmin(t *testing.T, name, email string, isSuper bool) admin.Administrator {
	return testutil.CreateAdministrator(t, f.repos.Administrators, name, email, testPwd, isSuper)
}

// do serves the request and returns the recorder.
func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, adm admin.Administrator) string {
	token, err := GenerateToken(GetAdministratorClaims(adm))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, objs)
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
