package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/innerwell/internal/client/client"
	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

// ErrNotSupported is returned for operations a flow has no endpoint for.
var ErrNotSupported = errors.New("not supported by this conversation type")

const pathChatSettings = "/api/chatbot/settings"

// Flow describes the endpoints of one conversation type. Path templates take
// the escaped session id as their only verb.
type Flow struct {
	Name string

	// StartPath opens a session. Empty means the first message is posted to
	// MessagePath without a session id.
	StartPath   string
	MessagePath string
	HistoryPath string
	ListPath    string
	DeletePath  string

	// ReplyOnStart: the start response already answers the first message.
	ReplyOnStart bool
	// SendsHistoryConsent: start carries save_history from the local consent.
	SendsHistoryConsent bool
	// RereadHistory: after each message the history is fetched again and its
	// last entry decides completion.
	RereadHistory bool
	// DetailsEnvelope: history comes wrapped as {"Entries": [...]}.
	DetailsEnvelope bool
	// RememberSession: the last session id is kept under chat-session.
	RememberSession bool
}

var (
	GeneralChat = Flow{
		Name:                "chat",
		StartPath:           "/api/chatbot/start/",
		MessagePath:         "/api/chatbot/message/",
		HistoryPath:         "/api/chatbot/history/%s/",
		ListPath:            "/api/chatbot/history/",
		DeletePath:          "/api/chatbot/history/%s/",
		SendsHistoryConsent: true,
	}
	MindsetMantra = Flow{
		Name:         "mindset",
		StartPath:    "/api/mindset/start/",
		MessagePath:  "/api/mindset/",
		HistoryPath:  "/api/mindset/history/%s/",
		ReplyOnStart: true,
	}
	InternalChallenge = Flow{
		Name:            "challenge",
		StartPath:       "/api/internal-challenge/start/",
		MessagePath:     "/api/internal-challenge/",
		HistoryPath:     "/api/internal-challenge/%s/",
		ReplyOnStart:    true,
		RereadHistory:   true,
		RememberSession: true,
	}
	Journaling = Flow{
		Name:            "journal",
		MessagePath:     "/api/journaling/chat/",
		HistoryPath:     "/api/journaling/sessions/%s/",
		ListPath:        "/api/journaling/sessions/",
		DeletePath:      "/api/journaling/sessions/%s/",
		ReplyOnStart:    true,
		DetailsEnvelope: true,
	}
)

// Flows lists every conversation type by name.
var Flows = map[string]Flow{
	GeneralChat.Name:       GeneralChat,
	MindsetMantra.Name:     MindsetMantra,
	InternalChallenge.Name: InternalChallenge,
	Journaling.Name:        Journaling,
}

// ConversationStore keeps the local conversation preferences.
type ConversationStore interface {
	HistoryConsent(ctx context.Context) (bool, error)
	SetHistoryConsent(ctx context.Context, allow bool) error
	LastChallengeSession(ctx context.Context) (models.SessionID, error)
	SetLastChallengeSession(ctx context.Context, id models.SessionID) error
}

// Profile exposes the signed-in user; *AuthService implements it.
type Profile interface {
	User() *models.User
}

// StartResult is the outcome of opening a conversation. NeedsSubscription
// is a normal outcome, not an error: the caller should offer the plans.
type StartResult struct {
	SessionID         models.SessionID
	Reply             string
	SessionComplete   bool
	NeedsSubscription bool
}

// Reply is the bot's answer to one message.
type Reply struct {
	Text              string
	SessionComplete   bool
	NeedsSubscription bool
}

type exchange struct {
	SessionID         models.SessionID `json:"session_id"`
	Reply             string           `json:"reply"`
	SessionComplete   bool             `json:"is_session_complete"`
	NeedsSubscription bool             `json:"needs_subscription"`
}

type ConversationService struct {
	flow    Flow
	api     API
	store   ConversationStore
	profile Profile
	logger  logging.Logger
}

func NewConversationService(flow Flow, api API, store ConversationStore, profile Profile, logger logging.Logger) *ConversationService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ConversationService{
		flow:    flow,
		api:     api,
		store:   store,
		profile: profile,
		logger:  logger.With("component", "conversation", "flow", flow.Name),
	}
}

func (s *ConversationService) Flow() Flow { return s.flow }

// Start opens a session with first as the opening message. Unsubscribed
// users are turned away locally when the cached profile says so, and by the
// server otherwise; either way the result has NeedsSubscription set.
func (s *ConversationService) Start(ctx context.Context, first string) (StartResult, error) {
	if err := requireText("message", first); err != nil {
		return StartResult{}, err
	}
	u := s.profile.User()
	if u == nil {
		return StartResult{}, ErrNotAuthenticated
	}
	if !u.IsSubscribed {
		return StartResult{NeedsSubscription: true}, nil
	}

	body := map[string]any{"message": first}
	if s.flow.SendsHistoryConsent {
		allow, err := s.store.HistoryConsent(ctx)
		if err != nil {
			s.logger.Warn(ctx, "cannot read history consent", "error", err)
		}
		body["save_history"] = allow
	}

	path := s.flow.StartPath
	if path == "" {
		path = s.flow.MessagePath
	}

	var out exchange
	if err := s.api.PostJSON(ctx, path, body, &out); err != nil {
		if errors.Is(err, client.ErrSubscriptionRequired) {
			return StartResult{NeedsSubscription: true}, nil
		}
		return StartResult{}, fmt.Errorf("start %s: %w", s.flow.Name, err)
	}
	if out.NeedsSubscription {
		return StartResult{NeedsSubscription: true}, nil
	}
	if out.SessionID == "" {
		return StartResult{}, fmt.Errorf("start %s: response has no session id", s.flow.Name)
	}

	if s.flow.RememberSession {
		if err := s.store.SetLastChallengeSession(ctx, out.SessionID); err != nil {
			s.logger.Warn(ctx, "cannot remember session", "error", err)
		}
	}

	res := StartResult{SessionID: out.SessionID, Reply: out.Reply, SessionComplete: out.SessionComplete}
	if !s.flow.ReplyOnStart {
		r, err := s.Send(ctx, out.SessionID, first)
		if err != nil {
			return res, err
		}
		res.Reply, res.SessionComplete, res.NeedsSubscription = r.Text, r.SessionComplete, r.NeedsSubscription
	}

	s.logger.Info(ctx, "conversation started", "session_id", out.SessionID.String())
	return res, nil
}

// Send posts text to session id and returns the bot's reply.
func (s *ConversationService) Send(ctx context.Context, id models.SessionID, text string) (Reply, error) {
	if err := requireText("session", id.String()); err != nil {
		return Reply{}, err
	}
	if err := requireText("message", text); err != nil {
		return Reply{}, err
	}

	var out exchange
	err := s.api.PostJSON(ctx, s.flow.MessagePath, map[string]any{"session_id": id, "message": text}, &out)
	if err != nil {
		if errors.Is(err, client.ErrSubscriptionRequired) {
			return Reply{NeedsSubscription: true}, nil
		}
		return Reply{}, fmt.Errorf("send %s message: %w", s.flow.Name, err)
	}
	if out.NeedsSubscription {
		return Reply{NeedsSubscription: true}, nil
	}

	if !s.flow.RereadHistory {
		return Reply{Text: out.Reply, SessionComplete: out.SessionComplete}, nil
	}

	msgs, err := s.History(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	r := Reply{Text: out.Reply}
	if len(msgs) > 0 {
		r.SessionComplete = msgs[len(msgs)-1].SessionComplete
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == models.SenderBot {
			r.Text = msgs[i].Text
			break
		}
	}
	return r, nil
}

// History returns the messages of session id, oldest first.
func (s *ConversationService) History(ctx context.Context, id models.SessionID) ([]models.Message, error) {
	if err := requireText("session", id.String()); err != nil {
		return nil, err
	}
	path := fmt.Sprintf(s.flow.HistoryPath, url.PathEscape(id.String()))

	if s.flow.DetailsEnvelope {
		var details models.SessionDetails
		if err := s.api.Get(ctx, path, nil, &details); err != nil {
			return nil, fmt.Errorf("%s history: %w", s.flow.Name, err)
		}
		return details.Entries, nil
	}

	var msgs []models.Message
	if err := s.api.Get(ctx, path, nil, &msgs); err != nil {
		return nil, fmt.Errorf("%s history: %w", s.flow.Name, err)
	}
	return msgs, nil
}

func (s *ConversationService) List(ctx context.Context) ([]models.SessionSummary, error) {
	if s.flow.ListPath == "" {
		return nil, ErrNotSupported
	}
	var out []models.SessionSummary
	if err := s.api.Get(ctx, s.flow.ListPath, nil, &out); err != nil {
		return nil, fmt.Errorf("list %s sessions: %w", s.flow.Name, err)
	}
	return out, nil
}

func (s *ConversationService) Delete(ctx context.Context, id models.SessionID) error {
	if s.flow.DeletePath == "" {
		return ErrNotSupported
	}
	if err := requireText("session", id.String()); err != nil {
		return err
	}
	if err := s.api.Delete(ctx, fmt.Sprintf(s.flow.DeletePath, url.PathEscape(id.String()))); err != nil {
		return fmt.Errorf("delete %s session: %w", s.flow.Name, err)
	}
	return nil
}

// Settings fetches the account's chat settings and adopts the server's
// history preference as the local consent.
func (s *ConversationService) Settings(ctx context.Context) (models.ChatSettings, error) {
	var out models.ChatSettings
	if err := s.api.Get(ctx, pathChatSettings, nil, &out); err != nil {
		return out, fmt.Errorf("chat settings: %w", err)
	}
	if err := s.store.SetHistoryConsent(ctx, out.AllowChatHistory); err != nil {
		return out, fmt.Errorf("store history consent: %w", err)
	}
	return out, nil
}

func (s *ConversationService) HistoryConsent(ctx context.Context) (bool, error) {
	return s.store.HistoryConsent(ctx)
}

func (s *ConversationService) SetHistoryConsent(ctx context.Context, allow bool) error {
	return s.store.SetHistoryConsent(ctx, allow)
}

// LastSession returns the remembered session id, if the flow keeps one.
func (s *ConversationService) LastSession(ctx context.Context) (models.SessionID, error) {
	if !s.flow.RememberSession {
		return "", ErrNotSupported
	}
	return s.store.LastChallengeSession(ctx)
}
