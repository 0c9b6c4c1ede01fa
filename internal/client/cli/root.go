package cli

import (
	"bufio"
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	a.mu.RLock()
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	a.mu.RUnlock()

	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root restores the saved session or asks for credentials, starts the
// connectivity watcher and blocks in the REPL until the user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.output(), "Welcome to homekeeper CLI (type 'help' for commands)")

	if !a.restoreSession(ctx) {
		if err := a.Login(ctx); err != nil {
			fmt.Fprintln(a.output(), "Not logged in, type 'login' or 'register'")
		}
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
