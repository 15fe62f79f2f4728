package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/report"
	"github.com/trezcool/tuition/core/student"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		// SignalShutdown is called when a handler fails with a core shutdown error.
		SignalShutdown func()

		Logger         core.Logger
		AdminSvc       *admin.Service
		GroupSvc       *group.Service
		StudentSvc     *student.Service
		PlanSvc        *plan.Service
		EnrollmentSvc  *enrollment.Service
		InstallmentSvc *installment.Service
		DeletionSvc    *deletion.Service
		ReportSvc      *report.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	scoped := scopeMiddleware(s.opts.GroupSvc)

	registerAdministratorAPI(v1, jwt, s.opts.AdminSvc, s.opts.GroupSvc)
	registerGroupAPI(v1, jwt, scoped, s.opts.GroupSvc, s.opts.AdminSvc, s.opts.DeletionSvc)
	registerStudentAPI(v1, jwt, scoped, s.opts)
	registerPlanAPI(v1, jwt, scoped, s.opts.PlanSvc, s.opts.GroupSvc, s.opts.DeletionSvc)
	registerInstallmentAPI(v1, jwt, scoped, s.opts.InstallmentSvc, s.opts.PlanSvc, s.opts.DeletionSvc)
	registerReportAPI(v1, jwt, scoped, s.opts.ReportSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
