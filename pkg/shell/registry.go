// Package shell implements the command dispatcher of the interactive shell:
// a lookup table from command name to handler and gate, the REPL loop driving
// it, and the exit hooks drained when the shell stops.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnknownCommand is returned when no registered command matches the input.
	ErrUnknownCommand = errors.New("no command found")

	// ErrInvalidInput is returned for lines that cannot be tokenized.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExit is returned by a handler that asks the shell to stop.
	ErrExit = errors.New("exit requested")
)

// GroupBuiltIn is the help group of quit, exit and help.
const GroupBuiltIn = "Built-In Commands"

// Command binds a name to a handler and an optional gate.
type Command struct {
	// Name may contain spaces, e.g. "db connect".
	Name    string
	Aliases []string
	Group   string
	Help    string
	// Usage is the positional argument synopsis shown by help.
	Usage string
	Flags func(fs *pflag.FlagSet)
	Gate  *Gate
	Run   func(ctx context.Context, inv *Invocation) error
}

// Invocation carries the parsed input of one command run.
type Invocation struct {
	Command *Command
	Flags   *pflag.FlagSet
	Args    []string
	Out     io.Writer
	// Width is the terminal width, 0 when unknown.
	Width int
}

// String returns a string flag value, empty when undefined.
func (i *Invocation) String(name string) string {
	v, _ := i.Flags.GetString(name)
	return v
}

// Bool returns a bool flag value, false when undefined.
func (i *Invocation) Bool(name string) bool {
	v, _ := i.Flags.GetBool(name)
	return v
}

// Rest joins the positional arguments with single spaces.
func (i *Invocation) Rest() string {
	return strings.Join(i.Args, " ")
}

// Printf writes formatted output to the invocation's writer.
func (i *Invocation) Printf(format string, a ...any) {
	fmt.Fprintf(i.Out, format, a...)
}

// Outcome reports which command a line resolved to and whether its gate let
// it run. A refused dispatch is an Outcome, not an error.
type Outcome struct {
	Command      *Command
	Availability Availability
}

// Registry manages the registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
	order    []*Command
	logger   *slog.Logger
	tracer   trace.Tracer
	runs     metric.Int64Counter
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	// Instruments from the global meter are no-ops until a provider is set.
	runs, _ := otel.Meter("vitool/shell").Int64Counter("vitool.shell.commands",
		metric.WithDescription("Dispatched commands by result"))
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
		logger:   logger,
		tracer:   otel.Tracer("vitool/shell"),
		runs:     runs,
	}
}

// Register adds a command. Registering a taken name replaces the old entry.
func (r *Registry) Register(cmd *Command) {
	key := normalize(cmd.Name)
	if old, ok := r.commands[key]; ok {
		for i, c := range r.order {
			if c == old {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.commands[key] = cmd
	r.order = append(r.order, cmd)
	for _, alias := range cmd.Aliases {
		r.aliases[normalize(alias)] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	key := normalize(name)
	if cmd, ok := r.commands[key]; ok {
		return cmd
	}
	return r.aliases[key]
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []*Command {
	return append([]*Command(nil), r.order...)
}

// Groups returns the commands grouped for help output, groups sorted by name
// with the built-in group last.
func (r *Registry) Groups() ([]string, map[string][]*Command) {
	byGroup := make(map[string][]*Command)
	for _, cmd := range r.order {
		group := cmd.Group
		if group == "" {
			group = "General"
		}
		byGroup[group] = append(byGroup[group], cmd)
	}

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == GroupBuiltIn) != (names[j] == GroupBuiltIn) {
			return names[j] == GroupBuiltIn
		}
		return names[i] < names[j]
	})
	return names, byGroup
}

// Lookup finds the longest registered name that prefixes words and returns
// the remaining words as arguments.
func (r *Registry) Lookup(words []string) (*Command, []string) {
	for n := len(words); n > 0; n-- {
		if cmd := r.Get(strings.Join(words[:n], " ")); cmd != nil {
			return cmd, words[n:]
		}
	}
	return nil, words
}

// Dispatch tokenizes line, resolves the command, checks its gate and runs it.
// The gate is evaluated before any flag parsing or handler code.
func (r *Registry) Dispatch(ctx context.Context, line string, out io.Writer, width int) (Outcome, error) {
	parser := shellwords.NewParser()
	words, err := parser.Parse(line)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if parser.Position >= 0 {
		return Outcome{}, fmt.Errorf("%w: unquoted shell operator, wrap the argument in quotes", ErrInvalidInput)
	}
	if len(words) == 0 {
		return Outcome{Availability: Available()}, nil
	}

	cmd, rest := r.Lookup(words)
	if cmd == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownCommand, words[0])
	}

	if a := cmd.Gate.Evaluate(); !a.Available {
		r.logger.Debug("Command unavailable", "command", cmd.Name, "reason", a.Reason)
		r.count(ctx, cmd, "refused")
		return Outcome{Command: cmd, Availability: a}, nil
	}

	fs := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	if err := fs.Parse(rest); err != nil {
		return Outcome{Command: cmd, Availability: Available()}, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if name := trailingFlag(fs); name != "" {
		return Outcome{Command: cmd, Availability: Available()},
			fmt.Errorf("%w: %s: flag %s must come before the arguments", ErrInvalidInput, cmd.Name, name)
	}

	inv := &Invocation{
		Command: cmd,
		Flags:   fs,
		Args:    fs.Args(),
		Out:     out,
		Width:   width,
	}
	return Outcome{Command: cmd, Availability: Available()}, r.run(ctx, cmd, inv)
}

func (r *Registry) run(ctx context.Context, cmd *Command, inv *Invocation) error {
	ctx, span := r.tracer.Start(ctx, cmd.Name, trace.WithAttributes(
		attribute.String("command.group", cmd.Group),
		attribute.Int("command.args", len(inv.Args)),
	))
	defer span.End()

	r.logger.Debug("Running command", "command", cmd.Name)
	err := cmd.Run(ctx, inv)
	if err != nil && !errors.Is(err, ErrExit) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("Command failed", "command", cmd.Name, "error", err)
		r.count(ctx, cmd, "error")
		return err
	}
	r.count(ctx, cmd, "ok")
	return err
}

func (r *Registry) count(ctx context.Context, cmd *Command, result string) {
	if r.runs == nil {
		return
	}
	r.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", cmd.Name),
		attribute.String("result", result),
	))
}

// trailingFlag returns the first positional argument naming a defined flag.
// Parsing stops at the first positional, so such a flag would otherwise end
// up in the argument text.
func trailingFlag(fs *pflag.FlagSet) string {
	for _, arg := range fs.Args() {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case strings.HasPrefix(arg, "--") && fs.Lookup(name) != nil:
			return arg
		case !strings.HasPrefix(arg, "--") && len(name) == 1 && fs.ShorthandLookup(name) != nil:
			return arg
		}
	}
	return ""
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
