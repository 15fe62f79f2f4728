package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/tuition/apps/deps"
	"github.com/trezcool/tuition/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDB       = errors.New("no SQL database configured")
	errPwdsDiffer = errors.New("passwords do not match")
)

type commandLine struct {
	db     *sql.DB // nil with the in-memory engine
	repos  deps.Repositories
	svcs   deps.Services
	mailer core.EmailService
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                   - run a goose command (up, down, status, redo...)")
	fmt.Fprintln(cli.out, "  addadmin -email EMAIL -name NAME [-super] - create or update an administrator")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                - reset an administrator's password")
	fmt.Fprintln(cli.out, "  refreshstatus                             - persist the overdue status of installments")
	fmt.Fprintln(cli.out, "  notifyoverdue                             - email the students owing overdue installments")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ContinueOnError)
	addAdminEmail := addAdminCmd.String("email", "", "The administrator's email. The password will be prompted next.")
	addAdminName := addAdminCmd.String("name", "", "The administrator's name.")
	addAdminSuper := addAdminCmd.Bool("super", false, "Grant access to every group.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The administrator's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminEmail == "" || *addAdminName == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			if err == errHelp {
				addAdminCmd.Usage()
			}
			return err
		}
		return cli.addAdmin(ctx, *addAdminEmail, *addAdminName, pwd, *addAdminSuper)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			if err == errHelp {
				resetPasswordCmd.Usage()
			}
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "refreshstatus":
		return cli.refreshStatus(ctx)

	case "notifyoverdue":
		return cli.notifyOverdue(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptPassword reads the password twice without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}

	fmt.Fprint(cli.out, "Confirm password:")
	confirm, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if string(confirm) != string(pwd) {
		return "", errPwdsDiffer
	}
	return string(pwd), nil
}
