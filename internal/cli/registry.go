// Package cli implements the interactive administration console:
// a command registry with permission gating and a line-editing REPL.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/identity"
	"github.com/Artemka007/plk-auth/internal/session"
)

// ErrExit signals the console loop to terminate.
var ErrExit = errors.New("cli: exit")

// Env carries the services a command handler may touch.
type Env struct {
	Session  *session.Session
	Auth     *session.Service
	Users    *identity.Service
	Resolver *identity.Resolver
	Audit    *audit.Log
	Registry *Registry

	Out      io.Writer
	PageSize int
	Log      zerolog.Logger

	// ReadSecret reads a line without echo; the console wires this to
	// the terminal, tests replace it.
	ReadSecret func(prompt string) (string, error)
}

// Command is one console verb. Requires names the permission an actor
// must hold; empty means any authenticated user, and Anonymous marks
// the few verbs usable before login.
type Command struct {
	Name         string
	Usage        string
	Summary      string
	Anonymous    bool
	AllowPending bool
	Requires     identity.PermissionName
	Run          func(ctx context.Context, env *Env, args []string) error
}

// Registry maps verb names to commands.
type Registry struct {
	commands map[string]*Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]*Command{}}
}

func (r *Registry) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Run == nil {
		return errors.New("cli: command needs a name and a handler")
	}
	if _, dup := r.commands[cmd.Name]; dup {
		return fmt.Errorf("cli: duplicate command %q", cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// All returns commands sorted by name, for help output.
func (r *Registry) All() []*Command {
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the named command after checking the session state and
// the actor's permissions. Denials are audited, not errors.
func (r *Registry) Dispatch(ctx context.Context, env *Env, name string, args []string) error {
	cmd, ok := r.Lookup(name)
	if !ok {
		fmt.Fprintf(env.Out, "Unknown command %q. Type 'help' for a list.\n", name)
		return nil
	}

	if !cmd.Anonymous && !env.Session.IsAuthenticated() {
		fmt.Fprintln(env.Out, "Please log in first.")
		return nil
	}
	if env.Session.State() == session.PendingPasswordChange && !cmd.AllowPending && !cmd.Anonymous {
		fmt.Fprintln(env.Out, "You must change your password before continuing. Use 'passwd'.")
		return nil
	}

	if cmd.Requires != "" {
		actor := env.Session.CurrentUser()
		allowed, err := env.Resolver.HasPermission(ctx, actor, cmd.Requires)
		if err != nil {
			return fmt.Errorf("check permission: %w", err)
		}
		if !allowed {
			fmt.Fprintln(env.Out, "Access denied.")
			if err := env.Audit.Warning(ctx, audit.ActionSecurityAccessDenied,
				fmt.Sprintf("command %s requires %s", cmd.Name, cmd.Requires),
				audit.WithActor(actor.ID)); err != nil {
				env.Log.Error().Err(err).Msg("audit write failed")
			}
			return nil
		}
	}

	return cmd.Run(ctx, env, args)
}
