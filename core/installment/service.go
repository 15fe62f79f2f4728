package installment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuition/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = errors.New("installment not found")
	ErrInvalidStatus = errors.New("invalid installment status")
	ErrPaymentDate   = errors.New("a payment date is required for paid installments only")
)

type (
	Repository interface {
		CreateInstallments(ctx context.Context, drafts []Draft, exec ...core.DBExecutor) ([]Installment, error)
		GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (Installment, error)
		// QueryInstallments returns the installments matching filter, ordered by student then installment number.
		QueryInstallments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Installment, error)
		CountInstallments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdatePayment(ctx context.Context, id string, status Status, paymentDate null.Time, exec ...core.DBExecutor) (Installment, error)
		UpdateStatuses(ctx context.Context, ids []string, status Status, exec ...core.DBExecutor) (int, error)
		// DeleteInstallments refuses filters that are not scoped to an installment, a plan or a student.
		DeleteInstallments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
		tx   core.Transactor
	}
)

func NewService(repo Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

func today() time.Time {
	return core.TruncateDay(NowFunc())
}

func (svc *Service) Get(ctx context.Context, id string) (Installment, error) {
	inst, err := svc.repo.GetInstallment(ctx, id)
	if err != nil {
		return Installment{}, err
	}
	return inst.Effective(NowFunc()), nil
}

// Query returns the installments matching filter with their statuses derived as of now.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Installment, error) {
	insts, err := svc.repo.QueryInstallments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying installments")
	}
	now := NowFunc()
	for i := range insts {
		insts[i] = insts[i].Effective(now)
	}
	return insts, nil
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Installment, error) {
	return svc.Query(ctx, QueryFilter{StudentID: studentID})
}

// MarkPaid stamps the installment as paid on paymentDate (today when zero).
// Marking an already paid installment only moves its payment date.
func (svc *Service) MarkPaid(ctx context.Context, id string, paymentDate time.Time) (Installment, error) {
	if paymentDate.IsZero() {
		paymentDate = today()
	}
	inst, err := svc.repo.UpdatePayment(ctx, id, StatusPaid, null.TimeFrom(core.TruncateDay(paymentDate)))
	if err != nil {
		return Installment{}, err
	}
	return inst, nil
}

// MarkUnpaid clears the payment date and reverts the installment to its open or overdue status.
func (svc *Service) MarkUnpaid(ctx context.Context, id string) (Installment, error) {
	var inst Installment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetInstallment(ctx, id, exec)
		if err != nil {
			return err
		}
		orig.Status = StatusOpen
		inst, err = svc.repo.UpdatePayment(ctx, id, DeriveStatus(orig, NowFunc()), null.Time{}, exec)
		return err
	})
	if err != nil {
		return Installment{}, err
	}
	return inst, nil
}

// Pay applies an UpdatePayment request on the installment.
func (svc *Service) Pay(ctx context.Context, id string, up UpdatePayment) (Installment, error) {
	if !up.Paid {
		return svc.MarkUnpaid(ctx, id)
	}
	var date time.Time
	if up.PaymentDate != "" {
		var err error
		if date, err = core.ParseDate(up.PaymentDate); err != nil {
			return Installment{}, core.NewValidationError(err, core.FieldError{Field: "payment_date", Error: err.Error()})
		}
	}
	return svc.MarkPaid(ctx, id, date)
}

// RefreshOverdue persists the derived statuses of unpaid installments whose stored status went stale.
// It returns the number of installments updated.
func (svc *Service) RefreshOverdue(ctx context.Context) (int, error) {
	var total int
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		now := NowFunc()
		insts, err := svc.repo.QueryInstallments(ctx, QueryFilter{Statuses: UnpaidStatuses}, exec)
		if err != nil {
			return errors.Wrap(err, "querying unpaid installments")
		}

		stale := map[Status][]string{}
		for _, inst := range insts {
			if status := DeriveStatus(inst, now); status != inst.Status {
				stale[status] = append(stale[status], inst.ID)
			}
		}
		for status, ids := range stale {
			cnt, err := svc.repo.UpdateStatuses(ctx, ids, status, exec)
			if err != nil {
				return errors.Wrapf(err, "updating installments to %s", status)
			}
			total += cnt
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
