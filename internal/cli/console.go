package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/Artemka007/plk-auth/internal/session"
)

// Console runs the interactive loop: read a line, resolve the verb,
// dispatch through the registry.
type Console struct {
	registry *Registry
	env      *Env
	line     *liner.State
	history  string
}

// NewConsole wires a console around the prepared Env. The registry
// comes pre-filled with the builtin verbs.
func NewConsole(env *Env) (*Console, error) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	env.Registry = reg
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.ReadSecret == nil {
		env.ReadSecret = readSecretTerminal
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, cmd := range reg.All() {
			if strings.HasPrefix(cmd.Name, prefix) {
				out = append(out, cmd.Name)
			}
		}
		return out
	})

	c := &Console{registry: reg, env: env, line: line}
	if dir, err := os.UserHomeDir(); err == nil {
		c.history = filepath.Join(dir, ".plkadmin_history")
		if f, err := os.Open(c.history); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return c, nil
}

// Run loops until exit, EOF, or a cancelled context.
func (c *Console) Run(ctx context.Context) error {
	defer c.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := c.line.Prompt(c.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.env.Out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		c.line.AppendHistory(input)

		name, args := resolveVerb(c.registry, strings.Fields(input))
		if err := c.registry.Dispatch(ctx, c.env, name, args); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(c.env.Out, "Error: %v\n", err)
		}
	}
}

// Close persists history and restores the terminal.
func (c *Console) Close() {
	if c.history != "" {
		if f, err := os.Create(c.history); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

func (c *Console) prompt() string {
	switch c.env.Session.State() {
	case session.Authenticated:
		return c.env.Session.CurrentUser().Email + "> "
	case session.PendingPasswordChange:
		return c.env.Session.CurrentUser().Email + " (change password)> "
	default:
		return "plkadmin> "
	}
}

// resolveVerb prefers a registered two-word verb ("user create") over
// a one-word one, so subcommands stay independent registry entries.
func resolveVerb(reg *Registry, fields []string) (string, []string) {
	if len(fields) >= 2 {
		joined := fields[0] + " " + fields[1]
		if _, ok := reg.Lookup(joined); ok {
			return joined, fields[2:]
		}
	}
	return fields[0], fields[1:]
}

func readSecretTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stdout, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
