package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/installment"
	emailsvc "github.com/trezcool/tuition/services/email"
)

func (cli *commandLine) refreshStatus(ctx context.Context) error {
	n, err := cli.svcs.Installment.RefreshOverdue(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing overdue statuses")
	}
	fmt.Fprintf(cli.out, "%d installment(s) updated\n", n)
	return nil
}

func (cli *commandLine) notifyOverdue(ctx context.Context) error {
	res, err := cli.svcs.Reminder.NotifyOverdue(ctx, core.Unrestricted(), installment.NowFunc())
	if err != nil {
		return errors.Wrap(err, "notifying overdue installments")
	}
	if w, ok := cli.mailer.(emailsvc.Waiter); ok {
		w.Wait()
	}
	fmt.Fprintf(cli.out, "%d student(s) notified, %d without email\n", res.Notified, res.NoEmail)
	return nil
}
