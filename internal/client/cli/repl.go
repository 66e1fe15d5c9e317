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
	hasToken() bool
	Token(ctx context.Context) error
	Add(ctx context.Context, paths []string) error
	List(ctx context.Context) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Upload(ctx context.Context) error
	Retry(ctx context.Context, id string) error
	Books(ctx context.Context) error
}

const helpText = `Available commands:
  token           paste an access token (input is hidden)
  add <path>...   validate files and add them to the queue
  ls              show the queue
  rm <id>         remove an item (id or unique prefix)
  clear           empty the queue
  upload          upload every queued item
  retry <id>      queue a failed item again
  books           list your catalog
  exit | quit     leave the program`

// runREPL reads commands line by line and dispatches them to a. It returns
// on scanner EOF or when the user types "exit" or "quit". Command errors
// are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("booky%s> ", statusFn()))
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
			printlnFn(helpText)
			if !a.hasToken() {
				printlnFn("Start with 'token' to sign in.")
			}

		case "token":
			err = a.Token(ctx)

		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <path>...")
				continue
			}
			err = a.Add(ctx, args)

		case "ls", "list":
			err = a.List(ctx)

		case "rm":
			if len(args) != 1 {
				printlnFn("Usage: rm <id>")
				continue
			}
			err = a.Remove(ctx, args[0])

		case "clear":
			err = a.Clear(ctx)

		case "upload":
			err = a.Upload(ctx)

		case "retry":
			if len(args) != 1 {
				printlnFn("Usage: retry <id>")
				continue
			}
			err = a.Retry(ctx, args[0])

		case "books":
			err = a.Books(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
