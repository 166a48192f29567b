package cli

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/dmitrijs2005/innerwell/internal/common"
)

type command struct {
	run   func(ctx context.Context, args []string) error
	usage string
	// route the command shows; empty keeps the current one
	route string
	// private commands need a signed-in user, like the web app's private routes
	private bool
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"register": {run: a.register, usage: "register", route: common.RouteRegister},
		"login":    {run: a.login, usage: "login", route: common.RouteLogin},
		"google":   {run: a.loginWithGoogle, usage: "google <access-token>", route: common.RouteLogin},
		"verify":   {run: a.verifyEmail, usage: "verify <uid> <token>", route: common.RouteLogin},
		"reset":    {run: a.resetPassword, usage: "reset <uid> <token>", route: common.RouteLogin},
		"logout":   {run: a.logout, usage: "logout"},

		"profile": {run: a.profile, usage: "profile", route: common.RouteProfile, private: true},
		"edit":    {run: a.editProfile, usage: "edit", route: common.RouteProfile, private: true},

		"settings": {run: a.settings, usage: "settings", route: common.RouteSettings, private: true},
		"history":  {run: a.historyConsent, usage: "history on|off", route: common.RouteSettings, private: true},

		"start":    {run: a.start, usage: "start <chat|mindset|challenge|journal> [message]", private: true},
		"say":      {run: a.say, usage: "say <message>", private: true},
		"show":     {run: a.show, usage: "show [<type> <id>]", private: true},
		"sessions": {run: a.sessions, usage: "sessions <chat|journal>", private: true},
		"delete":   {run: a.deleteSession, usage: "delete <chat|journal> <id>", private: true},
		"resume":   {run: a.resume, usage: "resume", private: true},

		"plans":     {run: a.listPlans, usage: "plans", route: common.RoutePricing},
		"subscribe": {run: a.subscribe, usage: "subscribe <plan-number>", route: common.RoutePricing, private: true},
		"confirm":   {run: a.confirmPayment, usage: "confirm <checkout-session-id>", route: common.RoutePricing, private: true},
		"reviews":   {run: a.listReviews, usage: "reviews", route: common.RouteHome},
		"home":      {run: func(context.Context, []string) error { return nil }, usage: "home", route: common.RouteHome},
	}
}

// runREPL reads commands from a.reader until EOF or "exit"/"quit".
//
// The prompt shows the signed-in user and the current route. Each command
// first moves the navigation state to its route, then runs. Private commands
// issued while signed out redirect to /login instead, as the web client's
// private routes do. Errors are reported to the user and never end the loop.
func runREPL(ctx context.Context, a *App) {
	cmds := a.commands()

	for {
		line, err := a.readLine("innerwell " + a.status())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.report(ctx, err)
			}
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "exit", "quit":
			a.println("Bye!")
			return
		case "help":
			a.help(cmds)
			continue
		}

		cmd, ok := cmds[name]
		if !ok {
			a.println("Unknown command:", name)
			continue
		}

		if cmd.private && !a.auth.IsAuthenticated() {
			a.nav.Navigate(common.RouteLogin)
			a.println("Please log in first.")
			continue
		}
		if cmd.route != "" {
			a.nav.Navigate(cmd.route)
		}

		if err := cmd.run(ctx, args); err != nil {
			a.report(ctx, err)
		}
	}
}

func (a *App) help(cmds map[string]command) {
	signedIn := a.auth.IsAuthenticated()

	var lines []string
	for _, c := range cmds {
		if c.private && !signedIn {
			continue
		}
		lines = append(lines, "  "+c.usage)
	}
	sort.Strings(lines)

	a.println("Available commands:")
	for _, l := range lines {
		a.println(l)
	}
	a.println("  help")
	a.println("  exit | quit")
}
