package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Homes(ctx context.Context) error
	AddHome(ctx context.Context) error
	RenameHome(ctx context.Context, id string) error
	RemoveHome(ctx context.Context, id string) error
	UseHome(ctx context.Context, id string) error
	Add(ctx context.Context, kind string) error
	List(ctx context.Context, kind string) error
	Edit(ctx context.Context, kind, id string) error
	Remove(ctx context.Context, kind, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = `Available commands:
  homes                      list homes (* marks the active one)
  home add                   create a home
  home use|rename|rm <id>    switch to, rename or remove a home
  add <kind>                 add a record to the active home
  (l)ist <kind>              list records of the active home
  edit <kind> <id>           change fields of a record
  rm <kind> <id>             remove a record
  sync                       synchronize with the server now
  status                     show sync status
  logout, exit
Kinds: category, todo_category, todo, item, location`
)

// runREPL starts a simple read–eval–print loop for the homekeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands other than help, register, login and exit require a session.
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("hk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "logout", "homes", "home", "add", "l", "list", "edit", "rm", "sync", "status":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			err = dispatch(ctx, a, cmd, args)

		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "homes":
		return a.Homes(ctx)
	case "sync":
		return a.Sync(ctx)
	case "status":
		return a.Status(ctx)
	case "home":
		return dispatchHome(ctx, a, args)
	}

	// record commands: <cmd> <kind> [id]
	switch {
	case (cmd == "add" || cmd == "l" || cmd == "list") && len(args) < 1:
		return usage(cmd + " <kind>")
	case (cmd == "edit" || cmd == "rm") && len(args) < 2:
		return usage(cmd + " <kind> <id>")
	}

	switch cmd {
	case "add":
		return a.Add(ctx, args[0])
	case "l", "list":
		return a.List(ctx, args[0])
	case "edit":
		return a.Edit(ctx, args[0], args[1])
	default:
		return a.Remove(ctx, args[0], args[1])
	}
}

func dispatchHome(ctx context.Context, a execIface, args []string) error {
	if len(args) == 0 {
		return usage("home add|use|rename|rm [id]")
	}
	if args[0] == "add" {
		return a.AddHome(ctx)
	}
	if len(args) < 2 {
		return usage("home " + args[0] + " <id>")
	}
	switch args[0] {
	case "use":
		return a.UseHome(ctx, args[1])
	case "rename":
		return a.RenameHome(ctx, args[1])
	case "rm":
		return a.RemoveHome(ctx, args[1])
	default:
		return usage("home add|use|rename|rm [id]")
	}
}

func usage(s string) error {
	printlnFn("Usage:", s)
	return nil
}
