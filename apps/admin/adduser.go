package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

// addUser creates a user.User after applying the same validations as the API.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		if vErrs, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return core.NewValidationError(nil, core.TranslateValidationErrors(vErrs, cli.translator)...)
		}
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	fmt.Printf("User %q (%s) created\n", usr.Username, usr.Role)
	return nil
}
