package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/client"
	"github.com/dmitrijs2005/homekeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for an email and password and attempts to create
// a new account via the AuthService.
//
// On success it prints "Success!" and returns nil. The password byte slice
// is securely wiped before returning. Any I/O or service error is returned
// unchanged.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter email", a.output())
	if err != nil {
		return err
	}

	password, err := getPassword(a.output())
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		return err
	}

	fmt.Fprintln(a.output(), "Success!")
	return nil
}

// Login prompts the user for credentials and tries to authenticate.
//
// The method first attempts an online login. If the server is unavailable
// (errors.Is(err, client.ErrUnavailable)), it falls back to offline login
// against the verifier saved by the last online login. Connectivity Mode ends
// up as:
//   - ModeOnline if online login succeeds,
//   - ModeOffline if offline login succeeds,
//   - ModeDisabled if both fail.
//
// The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter email", a.output())
	if err != nil {
		return err
	}

	password, err := getPassword(a.output())
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	log := a.logger().With("user", userName)

	err = a.authService.OnlineLogin(ctx, userName, password)
	switch {
	case err == nil:
		log.Info(ctx, "online login")
		fmt.Fprintln(a.output(), "Login successful")
		a.setUser(userName)
		a.setMode(ModeOnline)
		return nil

	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.output(), "Server unavailable, trying offline login...")
		if err := a.authService.OfflineLogin(ctx, userName, password); err != nil {
			log.Warn(ctx, "offline login failed", "error", err)
			fmt.Fprintf(a.output(), "Offline login unsuccessful: %s\n", err)
			a.setMode(ModeDisabled)
			return err
		}
		log.Info(ctx, "offline login")
		fmt.Fprintln(a.output(), "Offline login successful")
		a.setUser(userName)
		a.setMode(ModeOffline)
		return nil

	default:
		log.Warn(ctx, "login failed", "error", err)
		fmt.Fprintf(a.output(), "Login unsuccessful: %s\n", err)
		return err
	}
}

// restoreSession resumes the session saved by the last online login so the
// user is not prompted on every start.
func (a *App) restoreSession(ctx context.Context) bool {
	userName, err := a.authService.RestoreSession(ctx)
	if err != nil {
		return false
	}
	a.setUser(userName)

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.authService.Ping(pctx); err != nil {
		a.setMode(ModeOffline)
	} else {
		a.setMode(ModeOnline)
	}
	fmt.Fprintf(a.output(), "Welcome back, %s\n", userName)
	return true
}

// Logout clears the locally cached session. Local records stay and are
// pushed by the next session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.ClearOfflineData(ctx); err != nil {
		return err
	}
	a.setUser("")
	a.setMode(ModeDisabled)
	return nil
}
