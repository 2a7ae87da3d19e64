package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/identity"
)

// RegisterBuiltins installs every console verb into the registry.
func RegisterBuiltins(reg *Registry) error {
	cmds := []*Command{
		{
			Name: "login", Usage: "login <email>",
			Summary:   "Authenticate as a user",
			Anonymous: true,
			Run:       cmdLogin,
		},
		{
			Name: "logout", Usage: "logout",
			Summary:      "End the current session",
			AllowPending: true,
			Run:          cmdLogout,
		},
		{
			Name: "whoami", Usage: "whoami",
			Summary:      "Show the current user and effective permissions",
			AllowPending: true,
			Run:          cmdWhoami,
		},
		{
			Name: "passwd", Usage: "passwd",
			Summary:      "Change your own password",
			AllowPending: true,
			Run:          cmdPasswd,
		},
		{
			Name: "user create", Usage: "user create <first> <last> <email>",
			Summary:  "Create an account with a generated one-time password",
			Requires: identity.PermUserCreate,
			Run:      cmdUserCreate,
		},
		{
			Name: "user list", Usage: "user list",
			Summary:  "List all accounts",
			Requires: identity.PermUserRead,
			Run:      cmdUserList,
		},
		{
			Name: "user activate", Usage: "user activate <email>",
			Summary:  "Reactivate an account",
			Requires: identity.PermUserUpdate,
			Run:      setActive(true),
		},
		{
			Name: "user deactivate", Usage: "user deactivate <email>",
			Summary:  "Deactivate an account",
			Requires: identity.PermUserUpdate,
			Run:      setActive(false),
		},
		{
			Name: "user delete", Usage: "user delete <email>",
			Summary:  "Delete an account",
			Requires: identity.PermUserDelete,
			Run:      cmdUserDelete,
		},
		{
			Name: "user reset-password", Usage: "user reset-password <email>",
			Summary:  "Set a new password and force a change at next login",
			Requires: identity.PermUserUpdate,
			Run:      cmdResetPassword,
		},
		{
			Name: "role assign", Usage: "role assign <email> <role>",
			Summary:  "Grant role membership",
			Requires: identity.PermUserChangeRole,
			Run:      cmdRoleAssign,
		},
		{
			Name: "role remove", Usage: "role remove <email> <role>",
			Summary:  "Revoke role membership",
			Requires: identity.PermUserChangeRole,
			Run:      cmdRoleRemove,
		},
		{
			Name: "role list", Usage: "role list",
			Summary:  "List all roles",
			Requires: identity.PermUserRead,
			Run:      cmdRoleList,
		},
		{
			Name: "logs recent", Usage: "logs recent [n]",
			Summary:  "Show the newest audit entries",
			Requires: identity.PermSystemViewLogs,
			Run:      cmdLogsRecent,
		},
		{
			Name: "logs search", Usage: "logs search [-level L] [-action A] [-actor ID] [-subject ID] [-ip ADDR] [-contains S] [-page N] [-size N]",
			Summary:  "Search the audit trail; predicates combine with AND",
			Requires: identity.PermSystemViewLogs,
			Run:      cmdLogsSearch,
		},
		{
			Name: "logs delete", Usage: "logs delete [-level L] [-action A] [-actor ID] [-subject ID] [-ip ADDR] [-contains S]",
			Summary:  "Delete matching audit entries; an empty filter is refused",
			Requires: identity.PermSystemManageSettings,
			Run:      cmdLogsDelete,
		},
		{
			Name: "logs cleanup", Usage: "logs cleanup <days>",
			Summary:  "Delete audit entries older than the given number of days",
			Requires: identity.PermSystemManageSettings,
			Run:      cmdLogsCleanup,
		},
		{
			Name: "export users", Usage: "export users <file.csv>",
			Summary:  "Export all accounts to CSV",
			Requires: identity.PermSystemExport,
			Run:      cmdExportUsers,
		},
		{
			Name: "export logs", Usage: "export logs <file.csv> [-level L] [-action A]",
			Summary:  "Export matching audit entries to CSV",
			Requires: identity.PermSystemExport,
			Run:      cmdExportLogs,
		},
		{
			Name: "help", Usage: "help",
			Summary:   "List available commands",
			Anonymous: true,
			Run:       cmdHelp,
		},
		{
			Name: "exit", Usage: "exit",
			Summary:   "Leave the console",
			Anonymous: true,
			Run: func(context.Context, *Env, []string) error {
				return ErrExit
			},
		},
	}
	for _, cmd := range cmds {
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdLogin(ctx context.Context, env *Env, args []string) error {
	if len(args) != 1 {
		return errUsage("login <email>")
	}
	if env.Session.IsAuthenticated() {
		fmt.Fprintln(env.Out, "Already logged in. Use 'logout' first.")
		return nil
	}
	secret, err := env.ReadSecret("Password: ")
	if err != nil {
		return err
	}
	res, err := env.Auth.Login(ctx, env.Session, args[0], secret)
	if err != nil {
		return err
	}
	if !res.Success {
		fmt.Fprintln(env.Out, res.Message)
		return nil
	}
	if res.PasswordChangeRequired {
		fmt.Fprintln(env.Out, "Logged in. You must change your password now; use 'passwd'.")
		return nil
	}
	fmt.Fprintf(env.Out, "Logged in as %s.\n", env.Session.CurrentUser().Email)
	return nil
}

func cmdLogout(ctx context.Context, env *Env, _ []string) error {
	res := env.Auth.Logout(ctx, env.Session)
	if !res.Success {
		fmt.Fprintln(env.Out, res.Message)
		return nil
	}
	fmt.Fprintln(env.Out, "Logged out.")
	return nil
}

func cmdWhoami(ctx context.Context, env *Env, _ []string) error {
	user := env.Session.CurrentUser()
	fmt.Fprintf(env.Out, "%s <%s>\n", user.FullName(), user.Email)
	perms, err := env.Resolver.EffectivePermissions(ctx, user)
	if err != nil {
		return err
	}
	if len(perms) == 0 {
		fmt.Fprintln(env.Out, "No permissions.")
		return nil
	}
	for _, p := range perms {
		fmt.Fprintf(env.Out, "  %s\n", p)
	}
	return nil
}

func cmdPasswd(ctx context.Context, env *Env, _ []string) error {
	secret, err := env.ReadSecret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := env.ReadSecret("Repeat new password: ")
	if err != nil {
		return err
	}
	if secret != confirm {
		fmt.Fprintln(env.Out, "Passwords do not match.")
		return nil
	}
	res, err := env.Auth.ChangePassword(ctx, env.Session, secret)
	if err != nil {
		return err
	}
	if !res.Success {
		fmt.Fprintln(env.Out, res.Message)
		return nil
	}
	fmt.Fprintln(env.Out, "Password changed.")
	return nil
}

func cmdUserCreate(ctx context.Context, env *Env, args []string) error {
	if len(args) != 3 {
		return errUsage("user create <first> <last> <email>")
	}
	user, initial, err := env.Users.CreateUser(ctx, env.Session.CurrentUser(), args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Created %s.\n", user.Email)
	fmt.Fprintf(env.Out, "One-time password: %s\n", initial)
	fmt.Fprintln(env.Out, "The user must change it at first login.")
	return nil
}

func cmdUserList(ctx context.Context, env *Env, _ []string) error {
	users, err := env.Users.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tACTIVE\tLAST LOGIN")
	for _, u := range users {
		last := "never"
		if u.LastLoginAt != nil {
			last = u.LastLoginAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Email, u.FullName(), u.Active, last)
	}
	return tw.Flush()
}

func setActive(active bool) func(context.Context, *Env, []string) error {
	return func(ctx context.Context, env *Env, args []string) error {
		if len(args) != 1 {
			verb := "deactivate"
			if active {
				verb = "activate"
			}
			return errUsage("user " + verb + " <email>")
		}
		if err := env.Users.SetActive(ctx, env.Session.CurrentUser(), args[0], active); err != nil {
			return err
		}
		fmt.Fprintln(env.Out, "Done.")
		return nil
	}
}

func cmdUserDelete(ctx context.Context, env *Env, args []string) error {
	if len(args) != 1 {
		return errUsage("user delete <email>")
	}
	if err := env.Users.DeleteUser(ctx, env.Session.CurrentUser(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Deleted.")
	return nil
}

func cmdResetPassword(ctx context.Context, env *Env, args []string) error {
	if len(args) != 1 {
		return errUsage("user reset-password <email>")
	}
	secret, err := env.ReadSecret("New password for " + args[0] + ": ")
	if err != nil {
		return err
	}
	if err := env.Auth.AdminResetPassword(ctx, env.Session, args[0], secret); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Password reset. The user must change it at next login.")
	return nil
}

func cmdRoleAssign(ctx context.Context, env *Env, args []string) error {
	if len(args) != 2 {
		return errUsage("role assign <email> <role>")
	}
	err := env.Users.AssignRole(ctx, env.Session.CurrentUser(), args[0], args[1])
	if errors.Is(err, identity.ErrConflict) {
		fmt.Fprintln(env.Out, "Role already assigned.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Role assigned.")
	return nil
}

func cmdRoleRemove(ctx context.Context, env *Env, args []string) error {
	if len(args) != 2 {
		return errUsage("role remove <email> <role>")
	}
	if err := env.Users.RemoveRole(ctx, env.Session.CurrentUser(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Role removed.")
	return nil
}

func cmdRoleList(ctx context.Context, env *Env, _ []string) error {
	roles, err := env.Users.ListRoles(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSYSTEM\tDESCRIPTION")
	for _, r := range roles {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", r.Name, r.System, r.Description)
	}
	return tw.Flush()
}

func cmdLogsRecent(ctx context.Context, env *Env, args []string) error {
	limit := env.PageSize
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errUsage("logs recent [n]")
		}
		limit = n
	}
	entries, err := env.Audit.Recent(ctx, limit)
	if err != nil {
		return err
	}
	printEntries(env, entries)
	return nil
}

func cmdLogsSearch(ctx context.Context, env *Env, args []string) error {
	f, p, err := parseLogFlags(args, env.PageSize)
	if err != nil {
		return err
	}
	res, err := env.Audit.Search(ctx, f, p)
	if err != nil {
		return err
	}
	printEntries(env, res.Entries)
	fmt.Fprintf(env.Out, "Page %d of %d (%d entries total)\n", p.Normalize().Number, res.TotalPages, res.TotalCount)
	return nil
}

func cmdLogsDelete(ctx context.Context, env *Env, args []string) error {
	f, _, err := parseLogFlags(args, env.PageSize)
	if err != nil {
		return err
	}
	n, err := env.Audit.DeleteByFilter(ctx, f)
	if errors.Is(err, audit.ErrEmptyFilter) {
		fmt.Fprintln(env.Out, "Refusing to delete without a filter. Narrow the selection.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Deleted %d entries.\n", n)
	return nil
}

func cmdLogsCleanup(ctx context.Context, env *Env, args []string) error {
	if len(args) != 1 {
		return errUsage("logs cleanup <days>")
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		return errUsage("logs cleanup <days>")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := env.Audit.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Deleted %d entries older than %s.\n", n, cutoff.Format("2006-01-02"))
	return nil
}

func cmdHelp(_ context.Context, env *Env, _ []string) error {
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	for _, cmd := range env.Registry.All() {
		fmt.Fprintf(tw, "%s\t%s\n", cmd.Usage, cmd.Summary)
	}
	return tw.Flush()
}

func printEntries(env *Env, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(env.Out, "No entries.")
		return
	}
	for _, e := range entries {
		actor := e.ActorID
		if actor == "" {
			actor = "-"
		}
		fmt.Fprintf(env.Out, "%s  %-8s %-24s %-10s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Action, actor, e.Message)
	}
}

// parseLogFlags turns -level/-action/... arguments into a Filter and a
// Page. Unknown level or action names fail fast against the closed
// enums instead of producing a filter that never matches.
func parseLogFlags(args []string, defaultSize int) (audit.Filter, audit.Page, error) {
	var (
		f audit.Filter
		p = audit.Page{Number: 1, Size: defaultSize}
	)
	for i := 0; i < len(args); i++ {
		flagName := args[i]
		if !strings.HasPrefix(flagName, "-") {
			return f, p, fmt.Errorf("cli: unexpected argument %q", flagName)
		}
		i++
		if i >= len(args) {
			return f, p, fmt.Errorf("cli: flag %s needs a value", flagName)
		}
		value := args[i]
		switch flagName {
		case "-level":
			level, err := audit.ParseLevel(value)
			if err != nil {
				return f, p, err
			}
			f.Level = &level
		case "-action":
			action, err := audit.ParseAction(value)
			if err != nil {
				return f, p, err
			}
			f.Action = &action
		case "-actor":
			f.ActorID = value
		case "-subject":
			f.SubjectID = value
		case "-ip":
			f.IPAddress = value
		case "-contains":
			f.MessageContains = value
		case "-page":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return f, p, fmt.Errorf("cli: invalid page %q", value)
			}
			p.Number = n
		case "-size":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return f, p, fmt.Errorf("cli: invalid page size %q", value)
			}
			p.Size = n
		default:
			return f, p, fmt.Errorf("cli: unknown flag %s", flagName)
		}
	}
	return f, p, nil
}

func errUsage(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}
