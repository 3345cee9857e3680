// Package option resolves a single command parameter through an ordered chain
// of fallback providers: explicit argument, environment, interactive prompt and
// finally a hard failure.
package option

import (
	"errors"
	"os"
	"strings"
)

// ErrInterrupted is returned by a Prompter when the user cancels the input.
var ErrInterrupted = errors.New("input has been cancelled")

// ConfigurationError is raised when a chain ending in Must is exhausted.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Provider supplies a candidate value. A blank value means "not provided".
type Provider func() (string, error)

// InputRequest describes one interactive prompt.
type InputRequest struct {
	Prompt  string
	Default string
	Mask    bool
}

// Prompter reads a single line from the user. Implementations block until the
// user answers or interrupts.
type Prompter interface {
	Prompt(req InputRequest) (string, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(req InputRequest) (string, error)

func (f PrompterFunc) Prompt(req InputRequest) (string, error) {
	return f(req)
}

// Option is an ordered list of providers. Build one per invocation.
type Option struct {
	providers []Provider
}

// New returns an empty chain.
func New() *Option {
	return &Option{}
}

// Value starts a chain with an explicit argument.
func Value(v string) *Option {
	return New().Or(func() (string, error) { return v, nil })
}

// Or appends an arbitrary provider.
func (o *Option) Or(p Provider) *Option {
	o.providers = append(o.providers, p)
	return o
}

// OrValue appends a fixed fallback, typically a configured default.
func (o *Option) OrValue(v string) *Option {
	return o.Or(func() (string, error) { return v, nil })
}

// OrEnv appends a provider reading the named environment variable.
func (o *Option) OrEnv(name string) *Option {
	return o.Or(func() (string, error) { return os.Getenv(name), nil })
}

// InputOption tweaks an interactive prompt.
type InputOption func(*InputRequest)

// WithDefault sets the value used when the user submits an empty line.
func WithDefault(v string) InputOption {
	return func(r *InputRequest) { r.Default = v }
}

// Unmasked echoes the typed characters. Prompts are masked otherwise.
func Unmasked() InputOption {
	return func(r *InputRequest) { r.Mask = false }
}

// OrInput appends an interactive prompt. A nil prompter is skipped, which is
// how non-interactive callers opt out.
func (o *Option) OrInput(p Prompter, prompt string, opts ...InputOption) *Option {
	req := InputRequest{Prompt: prompt, Mask: true}
	for _, opt := range opts {
		opt(&req)
	}
	return o.Or(func() (string, error) {
		if p == nil {
			return "", nil
		}
		return p.Prompt(req)
	})
}

// Must appends a provider that always fails with a ConfigurationError.
func (o *Option) Must(msg string) *Option {
	return o.Or(func() (string, error) {
		return "", &ConfigurationError{Message: msg}
	})
}

// Get walks the providers in order and returns the first non-blank value.
// ok is false when every provider came up empty and no Must was reached.
func (o *Option) Get() (value string, ok bool, err error) {
	for _, p := range o.providers {
		v, err := p()
		if err != nil {
			return "", false, err
		}
		if IsBlank(v) {
			continue
		}
		return v, true, nil
	}
	return "", false, nil
}

// Require is Must(msg).Get() for callers that need a value.
func (o *Option) Require(msg string) (string, error) {
	v, _, err := o.Must(msg).Get()
	return v, err
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
