package cli

import (
	"context"
	"fmt"
	"net"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/privacybydesign/fiatshamir"
	"github.com/privacybydesign/fiatshamir/internal/common"
	"github.com/privacybydesign/fiatshamir/transport"
)

func runInit(ctx context.Context, app *App, _ []string) error {
	auth, err := app.authority(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "modulus %s (%d bits)\n", auth.Fingerprint(), auth.N().BitLen())
	return nil
}

func runRegister(ctx context.Context, app *App, args []string) error {
	h, err := app.cfg.HashFunction()
	if err != nil {
		return err
	}
	v, users, err := app.verifier(ctx)
	if err != nil {
		return err
	}
	defer common.Close(users)

	pw, err := app.newPassword()
	if err != nil {
		return err
	}
	pub := fiatshamir.NewKeyDeriver(h).DerivePublicKey(pw, app.auth.N())
	if err = v.Register(ctx, args[0], pub, h); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "registered %s\n", args[0])
	return nil
}

func runLogin(ctx context.Context, app *App, args []string) error {
	v, users, err := app.verifier(ctx)
	if err != nil {
		return err
	}
	defer common.Close(users)

	user, err := v.Lookup(ctx, args[0])
	if err != nil {
		return report(app, false, err)
	}
	// derive the secret with the hash the user registered with
	h, err := fiatshamir.HashFunctionByCode(user.HashCode)
	if err != nil {
		return err
	}

	pw, err := app.password("Password: ")
	if err != nil {
		return err
	}
	prover := fiatshamir.NewKeyDeriver(h).NewProver(pw, app.auth.N(), fiatshamir.SecureRandom())
	defer prover.Wipe()

	ok, err := v.VerifyUser(ctx, user, prover)
	return report(app, ok, err)
}

func runUsers(ctx context.Context, app *App, _ []string) error {
	_, users, err := app.verifier(ctx)
	if err != nil {
		return err
	}
	defer common.Close(users)

	list, err := users.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tHASH\tREGISTERED")
	for _, u := range list {
		name := "unknown"
		if h, err := fiatshamir.HashFunctionByCode(u.HashCode); err == nil {
			name = h.Name()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, name, u.Registered.Format(time.RFC3339))
	}
	return w.Flush()
}

func runServe(ctx context.Context, app *App, _ []string) error {
	v, users, err := app.verifier(ctx)
	if err != nil {
		return err
	}
	defer common.Close(users)

	ln, err := net.Listen("tcp", app.cfg.Listen)
	if err != nil {
		return err
	}
	return serveListener(ctx, v, ln, time.Duration(app.cfg.Timeout))
}

// serveListener runs v on every connection accepted from ln until ctx ends, then waits for open
// connections to finish. Each connection may stay open for at most timeout.
func serveListener(ctx context.Context, v *fiatshamir.Verifier, ln net.Listener, timeout time.Duration) error {
	go func() {
		<-ctx.Done()
		common.Close(ln)
	}()
	fiatshamir.Logger.WithField("address", ln.Addr().String()).Info("verifier listening")

	eg := errgroup.Group{}
	defer func() { _ = eg.Wait() }()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		eg.Go(func() error {
			connCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			log := fiatshamir.Logger.WithField("remote", conn.RemoteAddr().String())
			sc := transport.NewStreamConn(conn)
			defer common.Close(sc)
			if err := v.Serve(connCtx, sc); err != nil {
				log.WithError(err).Warn("connection ended")
				return nil
			}
			log.Debug("connection closed")
			return nil
		})
	}
}

func (app *App) dial(ctx context.Context) (transport.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", app.cfg.Server)
	if err != nil {
		return nil, err
	}
	return transport.NewStreamConn(conn), nil
}

func runEnroll(ctx context.Context, app *App, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(app.cfg.Timeout))
	defer cancel()
	h, err := app.cfg.HashFunction()
	if err != nil {
		return err
	}
	conn, err := app.dial(ctx)
	if err != nil {
		return err
	}
	defer common.Close(conn)

	auth, err := fiatshamir.FetchModulus(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "verifier modulus %s\n", auth.Fingerprint())
	pw, err := app.newPassword()
	if err != nil {
		return err
	}
	if err = fiatshamir.RequestRegistration(ctx, conn, auth, fiatshamir.NewKeyDeriver(h), args[0], pw); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "registered %s\n", args[0])
	return nil
}

func runProve(ctx context.Context, app *App, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(app.cfg.Timeout))
	defer cancel()
	h, err := app.cfg.HashFunction()
	if err != nil {
		return err
	}
	conn, err := app.dial(ctx)
	if err != nil {
		return err
	}
	defer common.Close(conn)

	auth, err := fiatshamir.FetchModulus(ctx, conn)
	if err != nil {
		return err
	}
	pw, err := app.password("Password: ")
	if err != nil {
		return err
	}
	prover := fiatshamir.NewKeyDeriver(h).NewProver(pw, auth.N(), fiatshamir.SecureRandom())
	defer prover.Wipe()

	ok, err := prover.Prove(ctx, args[0], conn)
	return report(app, ok, err)
}

func report(app *App, ok bool, err error) error {
	if ok {
		fmt.Fprintln(app.out, "accepted")
		return nil
	}
	fmt.Fprintln(app.out, "rejected")
	if err == nil {
		err = fiatshamir.ErrRejected
	}
	fiatshamir.Logger.WithFields(logrus.Fields{"error": err}).Debug("identification failed")
	return err
}
