package shell

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/DrSkyle/vitool/pkg/option"
)

// ReadlineTerminal is the interactive Terminal backed by readline. Secrets are
// read through the same instance so the prompt never competes with the line
// editor for stdin.
type ReadlineTerminal struct {
	rl        *readline.Instance
	closeOnce sync.Once
	closeErr  error
}

// NewReadlineTerminal opens the terminal with a yellow prompt and an optional
// history file.
func NewReadlineTerminal(prompt, historyFile string) (*ReadlineTerminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render(prompt) + " ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		FuncIsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	})
	if err != nil {
		return nil, err
	}
	return &ReadlineTerminal{rl: rl}, nil
}

// Readline implements Terminal.
func (t *ReadlineTerminal) Readline() (string, error) {
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrLineInterrupted
	}
	return line, err
}

// Prompt implements option.Prompter. Masked prompts echo '*' per character.
func (t *ReadlineTerminal) Prompt(req option.InputRequest) (string, error) {
	prompt := strings.TrimRight(req.Prompt, " ") + " "

	var (
		value string
		err   error
	)
	if req.Mask {
		cfg := t.rl.GenPasswordConfig()
		cfg.Prompt = prompt
		cfg.MaskRune = '*'
		var b []byte
		b, err = t.rl.ReadPasswordWithConfig(cfg)
		value = string(b)
	} else {
		restore := t.rl.Config.Prompt
		t.rl.SetPrompt(prompt)
		value, err = t.rl.ReadlineWithDefault(req.Default)
		t.rl.SetPrompt(restore)
	}

	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", option.ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if option.IsBlank(value) {
		return req.Default, nil
	}
	return value, nil
}

// Width implements Terminal.
func (t *ReadlineTerminal) Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// Close implements Terminal. It is safe to call more than once.
func (t *ReadlineTerminal) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.rl.Close() })
	return t.closeErr
}
