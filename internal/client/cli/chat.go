package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/client/services"
	"github.com/dmitrijs2005/innerwell/internal/common"
)

func (a *App) conversation(name string) (*services.ConversationService, bool) {
	c, ok := a.convs[name]
	if !ok {
		a.println("Unknown conversation type:", name, "(chat, mindset, challenge, journal)")
	}
	return c, ok
}

// flowRoutes names the screen of each conversation type under /chat.
var flowRoutes = map[string]string{
	services.GeneralChat.Name:       "general",
	services.MindsetMantra.Name:     "mindset",
	services.InternalChallenge.Name: "internal-challenge",
	services.Journaling.Name:        "journal",
}

func chatRoute(flow string, id models.SessionID) string {
	r := common.RouteChat + "/" + flowRoutes[flow]
	if id != "" {
		r += "/" + id.String()
	}
	return r
}

func (a *App) start(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.println("Usage: start <chat|mindset|challenge|journal> [message]")
		return nil
	}
	conv, ok := a.conversation(args[0])
	if !ok {
		return nil
	}
	a.nav.Navigate(chatRoute(args[0], ""))

	text := strings.Join(args[1:], " ")
	if text == "" {
		var err error
		if args[0] == services.Journaling.Name {
			text, err = GetMultiline(a.reader, "What would you like to write about?", a.out)
		} else {
			text, err = a.readLine("Your message")
		}
		if err != nil {
			return err
		}
	}

	res, err := conv.Start(ctx, text)
	if err != nil {
		return err
	}
	if res.NeedsSubscription {
		a.offerPlans()
		return nil
	}

	a.activeFlow, a.activeSession = args[0], res.SessionID
	a.nav.Navigate(chatRoute(args[0], res.SessionID))
	a.printReply(res.Reply, res.SessionComplete)
	return nil
}

func (a *App) say(ctx context.Context, args []string) error {
	if a.activeSession == "" {
		a.println("No active session, use 'start' or 'resume' first.")
		return nil
	}
	if len(args) == 0 {
		a.println("Usage: say <message>")
		return nil
	}
	conv, ok := a.conversation(a.activeFlow)
	if !ok {
		return nil
	}
	a.nav.Navigate(chatRoute(a.activeFlow, a.activeSession))

	r, err := conv.Send(ctx, a.activeSession, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if r.NeedsSubscription {
		a.offerPlans()
		return nil
	}
	a.printReply(r.Text, r.SessionComplete)
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	flow, id := a.activeFlow, a.activeSession
	if len(args) == 2 {
		flow, id = args[0], models.SessionID(args[1])
	}
	if id == "" {
		a.println("Usage: show <type> <id>")
		return nil
	}
	conv, ok := a.conversation(flow)
	if !ok {
		return nil
	}
	a.nav.Navigate(chatRoute(flow, id))

	msgs, err := conv.History(ctx, id)
	if err != nil {
		return err
	}
	a.activeFlow, a.activeSession = flow, id

	if len(msgs) == 0 {
		a.println("No messages yet.")
	}
	for _, m := range msgs {
		who := "bot"
		if m.Sender == models.SenderUser {
			who = "you"
		}
		a.printf("%s: %s\n", who, m.Text)
	}
	if n := len(msgs); n > 0 && msgs[n-1].SessionComplete {
		a.println("(session complete)")
	}
	return nil
}

func (a *App) sessions(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: sessions <chat|journal>")
		return nil
	}
	conv, ok := a.conversation(args[0])
	if !ok {
		return nil
	}
	a.nav.Navigate(chatRoute(args[0], ""))

	list, err := conv.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("No saved sessions.")
		return nil
	}
	for _, s := range list {
		label := s.Title
		if label == "" {
			label = s.Category
		}
		a.printf("%-8s %-30s %s\n", s.ID, label, s.CreatedAt)
	}
	return nil
}

func (a *App) deleteSession(ctx context.Context, args []string) error {
	if len(args) != 2 {
		a.println("Usage: delete <chat|journal> <id>")
		return nil
	}
	conv, ok := a.conversation(args[0])
	if !ok {
		return nil
	}
	id := models.SessionID(args[1])
	if err := conv.Delete(ctx, id); err != nil {
		return err
	}
	if a.activeFlow == args[0] && a.activeSession == id {
		a.activeFlow, a.activeSession = "", ""
	}
	a.println("Deleted.")
	return nil
}

// resume reopens the last internal challenge.
func (a *App) resume(ctx context.Context, _ []string) error {
	conv := a.convs[services.InternalChallenge.Name]
	id, err := conv.LastSession(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		a.println("No challenge to resume, use 'start challenge'.")
		return nil
	}
	return a.show(ctx, []string{services.InternalChallenge.Name, id.String()})
}

func (a *App) settings(ctx context.Context, _ []string) error {
	s, err := a.convs[services.GeneralChat.Name].Settings(ctx)
	if err != nil {
		return err
	}
	state := "off"
	if s.AllowChatHistory {
		state = "on"
	}
	a.printf("Chat history: %s\n", state)
	return nil
}

func (a *App) historyConsent(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		a.println("Usage: history on|off")
		return nil
	}
	if err := a.convs[services.GeneralChat.Name].SetHistoryConsent(ctx, args[0] == "on"); err != nil {
		return err
	}
	a.printf("Chat history %s.\n", args[0])
	return nil
}

func (a *App) printReply(text string, complete bool) {
	if text != "" {
		a.printf("bot: %s\n", text)
	}
	if complete {
		a.println("(session complete)")
	}
}

func (a *App) offerPlans() {
	a.nav.Navigate(common.RoutePricing)
	a.println("To access this feature, please subscribe to one of our plans. Type 'plans' to see them.")
}
