// Package cli implements the sub-commands of the fiatshamir command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-errors/errors"
	"golang.org/x/term"

	"github.com/privacybydesign/fiatshamir"
	"github.com/privacybydesign/fiatshamir/directory"
	"github.com/privacybydesign/fiatshamir/internal/common"
	"github.com/privacybydesign/fiatshamir/internal/config"
	"github.com/privacybydesign/fiatshamir/modulus"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	ErrUsage            = errors.New("usage")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type command struct {
	args  string
	help  string
	run   func(ctx context.Context, app *App, args []string) error
	nargs int
}

var commands = map[string]command{
	"init":     {"", "create the modulus if it does not exist yet and print its fingerprint", runInit, 0},
	"register": {"username", "register a user in the local user database", runRegister, 1},
	"login":    {"username", "identify against the local user database", runLogin, 1},
	"users":    {"", "list registered users", runUsers, 0},
	"serve":    {"", "run a verifier", runServe, 0},
	"enroll":   {"username", "register with a remote verifier", runEnroll, 1},
	"prove":    {"username", "identify to a remote verifier", runProve, 1},
}

// App carries what every command needs.
type App struct {
	cfg  *config.Config
	out  io.Writer
	auth *fiatshamir.Authority
}

// Run executes the command named by args[0] with the remaining arguments.
func Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return errors.WrapPrefix(ErrUsage, "unknown command "+args[0], 0)
	}
	cfg, rest, err := config.Load(args[1:])
	if err != nil {
		return err
	}
	if len(rest) != cmd.nargs {
		fmt.Fprintf(out, "usage: fiatshamir %s [flags] %s\n", args[0], cmd.args)
		return ErrUsage
	}
	fiatshamir.Logger.SetLevel(cfg.Level())
	return cmd.run(ctx, &App{cfg: cfg, out: out}, rest)
}

func usage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "usage: fiatshamir <command> [flags] [username]")
	fmt.Fprintln(out, "commands:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-9s %s\n", name, commands[name].help)
	}
}

// authority loads the modulus from the configured file, generating it on first use.
func (app *App) authority(ctx context.Context) (*fiatshamir.Authority, error) {
	if app.auth != nil {
		return app.auth, nil
	}
	auth, err := fiatshamir.NewAuthority(ctx, modulus.NewFileStore(app.cfg.ModulusFile), app.cfg.Parameters(), fiatshamir.SecureRandom())
	if err != nil {
		return nil, err
	}
	app.auth = auth
	return auth, nil
}

func (app *App) verifier(ctx context.Context) (*fiatshamir.Verifier, *directory.BoltDirectory, error) {
	auth, err := app.authority(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := directory.OpenBolt(app.cfg.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	v, err := fiatshamir.NewVerifier(auth, users, app.cfg.Rounds, fiatshamir.SecureRandom())
	if err != nil {
		common.Close(users)
		return nil, nil, err
	}
	return v, users, nil
}

// password prompts for a password and reads it without echo.
func (app *App) password(prompt string) (string, error) {
	if _, err := fmt.Fprint(app.out, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(app.out)
	if err != nil {
		return "", err
	}
	defer wipe(pw)
	return strings.TrimRight(string(pw), "\r\n"), nil
}

// newPassword asks for a password twice.
func (app *App) newPassword() (string, error) {
	pw, err := app.password("Password: ")
	if err != nil {
		return "", err
	}
	again, err := app.password("Repeat password: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", ErrPasswordMismatch
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
