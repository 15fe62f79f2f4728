package reminder

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

const templateName = "overdue_reminder"

type (
	Line struct {
		Number  int
		DueDate string
		Value   string
	}

	// Data is what the overdue_reminder templates render.
	Data struct {
		StudentName  string
		PlanName     string
		GroupName    string
		Installments []Line
		Total        string
	}

	Result struct {
		Notified int `json:"notified"`
		NoEmail  int `json:"no_email"`
	}

	Service struct {
		groups    group.Repository
		students  student.Repository
		plans     plan.Repository
		insts     installment.Repository
		mailer    core.EmailService
		graceDays int
	}
)

func NewService(
	groups group.Repository,
	students student.Repository,
	plans plan.Repository,
	insts installment.Repository,
	mailer core.EmailService,
	graceDays int,
) *Service {
	if graceDays < 0 {
		graceDays = 0
	}
	return &Service{
		groups:    groups,
		students:  students,
		plans:     plans,
		insts:     insts,
		mailer:    mailer,
		graceDays: graceDays,
	}
}

// NotifyOverdue emails every student of scope owing installments due more than graceDays before now.
// Students without an email address are counted but skipped.
func (svc *Service) NotifyOverdue(ctx context.Context, scope core.Scope, now time.Time) (Result, error) {
	var res Result

	insts, err := svc.insts.QueryInstallments(ctx, installment.QueryFilter{
		GroupIDs:  scope.GroupFilter(),
		Statuses:  installment.UnpaidStatuses,
		DueBefore: core.TruncateDay(now).AddDate(0, 0, -svc.graceDays),
	})
	if err != nil {
		return res, errors.Wrap(err, "querying overdue installments")
	}
	if len(insts) == 0 {
		return res, nil
	}

	// installments come ordered by student, then number
	byStudent := make(map[string][]installment.Installment)
	order := make([]string, 0)
	for _, inst := range insts {
		if _, ok := byStudent[inst.StudentID]; !ok {
			order = append(order, inst.StudentID)
		}
		byStudent[inst.StudentID] = append(byStudent[inst.StudentID], inst)
	}

	plans := make(map[string]plan.Plan)
	groups := make(map[string]group.Group)
	msgs := make([]*core.EmailMessage, 0, len(order))

	for _, stdID := range order {
		std, err := svc.students.GetStudent(ctx, stdID)
		if err != nil {
			if errors.Is(err, student.ErrNotFound) { // paid history of an erased student
				continue
			}
			return res, errors.Wrap(err, "getting student")
		}
		if !std.Email.Valid || std.Email.String == "" {
			res.NoEmail++
			continue
		}

		owed := byStudent[stdID]
		p, ok := plans[owed[0].PlanID]
		if !ok {
			if p, err = svc.plans.GetPlan(ctx, owed[0].PlanID); err != nil {
				return res, errors.Wrap(err, "getting plan")
			}
			plans[p.ID] = p
		}
		grp, ok := groups[p.GroupID]
		if !ok {
			if grp, err = svc.groups.GetGroup(ctx, p.GroupID); err != nil {
				return res, errors.Wrap(err, "getting group")
			}
			groups[grp.ID] = grp
		}

		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: std.Name, Address: std.Email.String}},
			Subject:      "Overdue installments",
			TemplateName: templateName,
			TemplateData: newData(std, p, grp, owed),
		})
		res.Notified++
	}

	if len(msgs) > 0 {
		svc.mailer.SendMessages(msgs...)
	}
	return res, nil
}

func newData(std student.Student, p plan.Plan, grp group.Group, owed []installment.Installment) Data {
	total := decimal.Zero
	lines := make([]Line, 0, len(owed))
	for _, inst := range owed {
		total = total.Add(inst.Value)
		lines = append(lines, Line{
			Number:  inst.Number,
			DueDate: inst.DueDate.Format(core.DateLayout),
			Value:   inst.Value.StringFixed(2),
		})
	}
	return Data{
		StudentName:  std.Name,
		PlanName:     p.Name,
		GroupName:    grp.Name,
		Installments: lines,
		Total:        total.StringFixed(2),
	}
}
