// Package deps wires the repositories & services shared by the API and the admin CLI.
package deps

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/deletion"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/reminder"
	"github.com/trezcool/tuition/core/report"
	"github.com/trezcool/tuition/core/student"
	"github.com/trezcool/tuition/storage/database"
	"github.com/trezcool/tuition/storage/database/memdb"
	"github.com/trezcool/tuition/storage/database/sqlxrepos"
)

type (
	Repositories struct {
		Administrators admin.Repository
		Groups         group.Repository
		Students       student.Repository
		Plans          plan.Repository
		Enrollments    enrollment.Repository
		Installments   installment.Repository
	}

	Services struct {
		Admin       *admin.Service
		Group       *group.Service
		Student     *student.Service
		Plan        *plan.Service
		Enrollment  *enrollment.Service
		Installment *installment.Service
		Deletion    *deletion.Service
		Report      *report.Service
		Reminder    *reminder.Service
	}
)

// PostgresRepositories returns the sqlx repositories & transactor over db.
func PostgresRepositories(db *sqlx.DB) (Repositories, core.Transactor) {
	return Repositories{
		Administrators: sqlxrepos.NewAdministratorRepository(db),
		Groups:         sqlxrepos.NewGroupRepository(db),
		Students:       sqlxrepos.NewStudentRepository(db),
		Plans:          sqlxrepos.NewPlanRepository(db),
		Enrollments:    sqlxrepos.NewEnrollmentRepository(db),
		Installments:   sqlxrepos.NewInstallmentRepository(db),
	}, database.NewTransactor(db)
}

// MemoryRepositories returns the in-memory repositories & transactor over db.
func MemoryRepositories(db *memdb.DB) (Repositories, core.Transactor) {
	return Repositories{
		Administrators: memdb.NewAdministratorRepository(db),
		Groups:         memdb.NewGroupRepository(db),
		Students:       memdb.NewStudentRepository(db),
		Plans:          memdb.NewPlanRepository(db),
		Enrollments:    memdb.NewEnrollmentRepository(db),
		Installments:   memdb.NewInstallmentRepository(db),
	}, memdb.NewTransactor(db)
}

func NewServices(repos Repositories, tx core.Transactor, mailer core.EmailService, conf *core.Config) Services {
	return Services{
		Admin:       admin.NewService(repos.Administrators, mailer),
		Group:       group.NewService(repos.Groups, tx),
		Student:     student.NewService(repos.Students, repos.Enrollments, tx),
		Plan:        plan.NewService(repos.Plans, repos.Enrollments, tx),
		Enrollment:  enrollment.NewService(repos.Enrollments, repos.Students, repos.Plans, repos.Installments, tx),
		Installment: installment.NewService(repos.Installments, tx),
		Deletion: deletion.NewService(
			repos.Groups, repos.Students, repos.Plans, repos.Enrollments, repos.Installments, tx,
		),
		Report: report.NewService(repos.Groups, repos.Students, repos.Installments),
		Reminder: reminder.NewService(
			repos.Groups, repos.Students, repos.Plans, repos.Installments, mailer, conf.Reminders.OverdueGraceDays,
		),
	}
}
