package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
	"github.com/trezcool/paperdesk/storage/database"
	inmemdb "github.com/trezcool/paperdesk/storage/database/inmem"
	"github.com/trezcool/paperdesk/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	return &commandLine{
		usrSvc:     user.NewService(usrRepo),
		validate:   validate,
		translator: translator,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

// check asserts the outcome of cli.run against tt.
func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var calls []string
	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })
	gooseRunFunc = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		if dir != database.MigrationsDir {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		calls = append(calls, command)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "review_rounds", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}
	assert.Equal(t, []string{
		"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version", "create", "fix",
	}, calls)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Taken", "taken", "taken@univ.cd", "", user.RoleStudent)

	const goodPwd = "Qwerty@123"
	type extra struct {
		pwd      string
		wantRole user.Role
		wantName string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@univ.cd"}, wantErr: errHelp},
		{
			name:       "weak password",
			args:       []string{"adduser", "-username", "boss", "-email", "boss@univ.cd"},
			extra:      extra{pwd: "lol"},
			wantErrStr: "password: password must contain at least 8 characters",
		},
		{
			name:       "invalid role",
			args:       []string{"adduser", "-username", "boss", "-email", "boss@univ.cd", "-role", "dean"},
			extra:      extra{pwd: goodPwd},
			wantErrStr: "role: role must be one of admin, teacher or student",
		},
		{
			name:       "invalid email",
			args:       []string{"adduser", "-username", "boss", "-email", "boss"},
			extra:      extra{pwd: goodPwd},
			wantErrStr: "email: email must be a valid email address",
		},
		{
			name:    "username taken",
			args:    []string{"adduser", "-username", "Taken", "-email", "boss@univ.cd"},
			extra:      extra{pwd: goodPwd},
			wantErrStr: "Username already taken",
		},
		{
			name:  "admin by default",
			args:  []string{"adduser", "-username", "Boss", "-email", "Boss@Univ.cd"},
			extra: extra{pwd: goodPwd, wantRole: user.RoleAdmin, wantName: "Boss"},
		},
		{
			name:  "teacher",
			args:  []string{"adduser", "-username", "kabila", "-email", "kabila@univ.cd", "-name", "Prof Kabila", "-role", "teacher"},
			extra: extra{pwd: goodPwd, wantRole: user.RoleTeacher, wantName: "Prof Kabila"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		ex, _ := tt.extra.(extra)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(ex.pwd)
			err := cli.run(context.Background(), args)
			tt.check(t, err)
			if err != nil || ex.wantRole == "" {
				return
			}
			usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), args[3])
			require.NoError(t, err)
			assert.Equal(t, ex.wantRole, usr.Role)
			assert.Equal(t, ex.wantName, usr.Name)
			assert.NoError(t, usr.CheckPassword(goodPwd))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", user.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", " AWE@test.cd "}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		ex, _ := tt.extra.(extra)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(ex.pwd)
			err := cli.run(context.Background(), args)
			tt.check(t, err)
			if err != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(ex.pwd))
			assert.Error(t, refreshedUsr.CheckPassword("mdr"))
		})
	}
}
