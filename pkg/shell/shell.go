package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/DrSkyle/vitool/pkg/option"
)

// ErrLineInterrupted is returned by a Terminal when Ctrl-C discards the line.
var ErrLineInterrupted = errors.New("line interrupted")

// Terminal is the line-oriented I/O the shell runs on.
type Terminal interface {
	option.Prompter
	// Readline returns the next command line, io.EOF at end of input.
	Readline() (string, error)
	Width() int
	Close() error
}

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
)

// Shell is the read-dispatch-print loop.
type Shell struct {
	registry *Registry
	term     Terminal
	out      io.Writer
	hooks    *ExitHooks
	logger   *slog.Logger
}

// New assembles a shell. The built-in help, quit and exit commands are added
// to the registry.
func New(registry *Registry, term Terminal, out io.Writer, hooks *ExitHooks, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{
		registry: registry,
		term:     term,
		out:      out,
		hooks:    hooks,
		logger:   logger,
	}
	registerBuiltins(registry)
	return s
}

// Run reads and executes lines until quit, exit or end of input, then drains
// the exit hooks before returning.
//
// Cancelling ctx closes the terminal to unblock a pending read. The hooks
// still run on the calling goroutine, after the current command returns.
func (s *Shell) Run(ctx context.Context) error {
	defer s.hooks.Run()

	stop := context.AfterFunc(ctx, func() { s.term.Close() })
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.term.Readline()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrLineInterrupted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if errors.Is(s.Execute(ctx, line), ErrExit) {
			return nil
		}
	}
}

// Execute runs a single line and renders the outcome. Only ErrExit is
// returned; every other failure is printed and swallowed so the loop goes on.
func (s *Shell) Execute(ctx context.Context, line string) error {
	outcome, err := s.registry.Dispatch(ctx, line, s.out, s.term.Width())
	switch {
	case errors.Is(err, ErrExit):
		return ErrExit
	case errors.Is(err, pflag.ErrHelp):
		writeCommandHelp(s.out, outcome.Command)
	case err != nil:
		fmt.Fprintln(s.out, errorStyle.Render(err.Error()))
	case outcome.Command != nil && !outcome.Availability.Available:
		msg := fmt.Sprintf("Command '%s' exists but is not currently available because %s",
			outcome.Command.Name, outcome.Availability.Reason)
		fmt.Fprintln(s.out, errorStyle.Render(msg))
	}
	return nil
}

func registerBuiltins(r *Registry) {
	r.Register(&Command{
		Name:    "quit",
		Aliases: []string{"exit"},
		Group:   GroupBuiltIn,
		Help:    "Exit the shell.",
		Run: func(ctx context.Context, inv *Invocation) error {
			return ErrExit
		},
	})

	r.Register(&Command{
		Name:  "help",
		Group: GroupBuiltIn,
		Help:  "Display help about available commands.",
		Usage: "[command]",
		Run: func(ctx context.Context, inv *Invocation) error {
			if len(inv.Args) > 0 {
				cmd, _ := r.Lookup(inv.Args)
				if cmd == nil {
					return fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Rest())
				}
				writeCommandHelp(inv.Out, cmd)
				return nil
			}
			writeHelp(inv.Out, r)
			return nil
		},
	})
}

func writeHelp(w io.Writer, r *Registry) {
	fmt.Fprintln(w, "AVAILABLE COMMANDS")
	fmt.Fprintln(w)

	anyUnavailable := false
	groups, byGroup := r.Groups()
	for _, group := range groups {
		fmt.Fprintln(w, group)
		for _, cmd := range byGroup[group] {
			marker := "  "
			if !cmd.Gate.Evaluate().Available {
				marker = "* "
				anyUnavailable = true
			}
			names := append([]string{cmd.Name}, cmd.Aliases...)
			fmt.Fprintf(w, "     %s%s: %s\n", marker, strings.Join(names, ", "), cmd.Help)
		}
		fmt.Fprintln(w)
	}

	if anyUnavailable {
		fmt.Fprintln(w, noticeStyle.Render("Commands marked with (*) are currently unavailable."))
	}
	fmt.Fprintln(w, "Type `help <command>` to learn more.")
}

func writeCommandHelp(w io.Writer, cmd *Command) {
	if cmd == nil {
		return
	}
	fmt.Fprintln(w, "NAME")
	fmt.Fprintf(w, "       %s - %s\n\n", cmd.Name, cmd.Help)

	fs := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}

	fmt.Fprintln(w, "SYNOPSIS")
	synopsis := cmd.Name
	if fs.HasFlags() {
		synopsis += " [flags]"
	}
	if cmd.Usage != "" {
		synopsis += " " + cmd.Usage
	}
	fmt.Fprintf(w, "       %s\n\n", synopsis)

	if fs.HasFlags() {
		fmt.Fprintln(w, "OPTIONS")
		fmt.Fprintln(w, fs.FlagUsages())
	}

	if len(cmd.Aliases) > 0 {
		fmt.Fprintln(w, "ALSO KNOWN AS")
		fmt.Fprintf(w, "       %s\n\n", strings.Join(cmd.Aliases, ", "))
	}

	if a := cmd.Gate.Evaluate(); !a.Available {
		fmt.Fprintln(w, "CURRENTLY UNAVAILABLE")
		fmt.Fprintf(w, "       This command is currently not available because %s.\n", a.Reason)
	}
}
