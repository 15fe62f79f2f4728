package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
)

// addAdmin creates the administrator, or updates the one already registered with email.
func (cli *commandLine) addAdmin(ctx context.Context, email, name, pwd string, isSuper bool) error {
	adm, err := cli.svcs.Admin.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != admin.ErrNotFound {
			return err
		}

		na := admin.NewAdministrator{
			Name:            name,
			Email:           email,
			IsSuperAdmin:    isSuper,
			Password:        pwd,
			PasswordConfirm: pwd,
		}
		if err = na.Validate(cli.svcs.Admin); err != nil {
			return err
		}
		if adm, err = cli.svcs.Admin.Create(ctx, na); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "administrator %s created\n", adm.Email)
		return nil
	}

	if err = admin.CheckPasswordPolicy(pwd, core.CleanString(name), adm.Email); err != nil {
		return err
	}
	adm.Name = core.CleanString(name)
	adm.IsSuperAdmin = isSuper
	adm.IsActive = true
	if err = adm.SetPassword(pwd); err != nil {
		return err
	}
	adm.UpdatedAt = time.Now().UTC()
	if _, err = cli.repos.Administrators.UpdateAdministrator(ctx, adm); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "administrator %s updated\n", adm.Email)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	rp := admin.ResetPassword{Email: email, Password: pwd, PasswordConfirm: pwd}
	if err := rp.Validate(); err != nil {
		return err
	}
	adm, err := cli.svcs.Admin.ResetPassword(ctx, rp)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s reset\n", adm.Email)
	return nil
}
