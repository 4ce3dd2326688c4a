package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

// ErrUsage marks a malformed command line.
var ErrUsage = errors.New("usage error")

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
)

// ExitCode maps a command error to the process exit status. Rejected
// input, whether from the validator or the command line, exits with 2.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, core.ErrValidation), errors.Is(err, ErrUsage):
		return ExitValidation
	default:
		return ExitFailure
	}
}

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

// App runs budgeteer subcommands against a ledger.
type App struct {
	ledger    *services.Ledger
	recurring *services.RecurringProcessor
	out       io.Writer
	errOut    io.Writer
	now       func() time.Time

	// createTemp opens the temp file an export is written to.
	createTemp func(dir, pattern string) (*os.File, error)
}

type AppOption func(*App)

// WithAppClock sets the clock used for default dates and recurring runs.
func WithAppClock(now func() time.Time) AppOption {
	return func(a *App) { a.now = now }
}

func NewApp(ledger *services.Ledger, recurring *services.RecurringProcessor, out, errOut io.Writer, opts ...AppOption) *App {
	a := &App{
		ledger:     ledger,
		recurring:  recurring,
		out:        out,
		errOut:     errOut,
		now:        time.Now,
		createTemp: os.CreateTemp,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	commands := a.commands()
	if len(args) == 0 {
		a.usage(commands)
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		a.usage(commands)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		a.usage(commands)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd.run(log.EnsureTraceID(ctx), args[1:])
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"expense":    {"add, update, delete or list expenses", a.runExpense},
		"budget":     {"add, update, delete, activate, deactivate or list budgets", a.runBudget},
		"stats":      {"print statistics for the matching expenses", a.runStats},
		"dashboard":  {"print overall statistics and active budget status", a.runDashboard},
		"categories": {"list the budget categories", a.runCategories},
		"recurring":  {"run: create the recurring expenses that are due", a.runRecurring},
		"export":     {"write expenses to a csv or xlsx file", a.runExport},
	}
}

func (a *App) usage(commands map[string]command) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.errOut, "usage: budgeteer <command> [flags]")
	fmt.Fprintln(a.errOut)
	for _, name := range names {
		fmt.Fprintf(a.errOut, "  %-11s %s\n", name, commands[name].summary)
	}
}

// subcommand dispatches the verb in args[0] to one of actions.
func (a *App) subcommand(ctx context.Context, group string, args []string, actions map[string]func(context.Context, []string) error) error {
	verbs := make([]string, 0, len(actions))
	for verb := range actions {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)

	if len(args) == 0 {
		return fmt.Errorf("%w: budgeteer %s <%s>", ErrUsage, group, strings.Join(verbs, "|"))
	}
	action, ok := actions[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown %s command %q, want one of %s", ErrUsage, group, args[0], strings.Join(verbs, ", "))
	}
	return action(ctx, args[1:])
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parse parses args into fs, wrapping flag errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// idArg returns the single positional ID, or the -id flag value.
func idArg(fs *flag.FlagSet, flagID string) (string, error) {
	id := strings.TrimSpace(flagID)
	if id == "" && fs.NArg() > 0 {
		id = strings.TrimSpace(fs.Arg(0))
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s requires an id", ErrUsage, fs.Name())
	}
	return id, nil
}
