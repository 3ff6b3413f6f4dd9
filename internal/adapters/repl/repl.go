package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"crm-workflow/internal/adapters/cli"
	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
)

var errExit = errors.New("exit")

// Run starts the interactive loop. Every one-shot CLI command is available,
// with or without a leading slash, plus /new-quote, /help and /exit.
// It returns when the reader is exhausted or the user exits.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "CRM workflow shell")
	fmt.Fprintf(out, "Tenant %d, user %d (%s). Type /help for commands.\n", actor.TenantID, actor.UserID, actor.Role)
	fmt.Fprintln(out, strings.Repeat("-", 70))

	dispatch := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		cmd := strings.ToLower(tokens[0])

		switch cmd {
		case "exit", "quit":
			return errExit
		case "help", "h":
			fmt.Fprintln(out, cli.Usage)
			fmt.Fprintln(out, "  new-quote <company-id>                 create a quote interactively")
			fmt.Fprintln(out, "  exit                                   leave the shell")
			return nil
		case "new-quote":
			if len(tokens) < 2 {
				fmt.Fprintln(out, "Usage: /new-quote <company-id>")
				return nil
			}
			return handleNewQuote(ctx, reader, out, svc, actor, tokens[1])
		}
		tokens[0] = cmd
		return cli.Run(ctx, svc, actor, tokens, out)
	}

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if derr := dispatch(input); derr != nil {
				if errors.Is(derr, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", derr)
			}
		}
		if err != nil {
			return
		}
	}
}
