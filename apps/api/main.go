package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/tuition/apps/api/echo"
	"github.com/trezcool/tuition/apps/deps"
	"github.com/trezcool/tuition/core"
	emailsvc "github.com/trezcool/tuition/services/email"
	logsvc "github.com/trezcool/tuition/services/logger"
	"github.com/trezcool/tuition/storage/database"
	"github.com/trezcool/tuition/storage/database/memdb"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	var (
		repos deps.Repositories
		tx    core.Transactor
	)
	if conf.Database.Engine == "memory" {
		logger.Warn("using the in-memory database: data will not survive a restart")
		repos, tx = deps.MemoryRepositories(memdb.Open())
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("failed to close", err)
			}
		}()
		repos, tx = deps.PostgresRepositories(db)
	}

	mailer := emailsvc.NewService(logger)
	svcs := deps.NewServices(repos, tx, mailer, conf)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
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

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		return nil, err
	}
	return db, nil
}
