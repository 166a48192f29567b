package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type flow int

const (
	flowChatbot flow = iota
	flowMindset
	flowChallenge
	flowJournal
)

// challengeTurns is how many user messages close an internal challenge.
const challengeTurns = 3

func (f flow) String() string {
	switch f {
	case flowChatbot:
		return "chatbot"
	case flowMindset:
		return "mindset"
	case flowChallenge:
		return "internal-challenge"
	case flowJournal:
		return "journaling"
	default:
		return "unknown"
	}
}

type entry struct {
	id        int
	sender    string
	text      string
	createdAt string
	complete  bool
}

type conversation struct {
	id          string
	seq         int
	owner       string
	flow        flow
	title       string
	createdAt   string
	saveHistory bool
	userTurns   int
	entries     []entry
}

func (c *conversation) add(id int, sender, text string, complete bool) {
	c.entries = append(c.entries, entry{
		id:        id,
		sender:    sender,
		text:      text,
		createdAt: time.Now().UTC().Format(time.RFC3339Nano),
		complete:  complete,
	})
}

func reply(f flow, text string) string {
	switch f {
	case flowMindset:
		return "Repeat after me: " + text
	case flowChallenge:
		return "What is really behind \"" + text + "\"?"
	case flowJournal:
		return "Tell me more about " + text + "."
	default:
		return "I hear you. " + text
	}
}

// declineLocked answers an unsubscribed start the way the configured signal
// says. It reports whether the request was declined.
func (s *Server) declineLocked(w http.ResponseWriter, a *account) bool {
	if a.IsSubscribed {
		return false
	}
	switch s.signal {
	case SignalForbiddenCode:
		writeError(w, http.StatusForbidden, "subscription_required", "An active subscription is required.")
	case SignalBodyFlag:
		writeJSON(w, http.StatusOK, map[string]any{"needs_subscription": true})
	default:
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"detail": "An active subscription is required."})
	}
	return true
}

func (s *Server) newConversationLocked(f flow, owner, title string) *conversation {
	n := s.nextID()
	id := strconv.Itoa(n)
	if f == flowJournal {
		id = "j-" + id
	}
	c := &conversation{
		id:        id,
		seq:       n,
		owner:     owner,
		flow:      f,
		title:     title,
		createdAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.convs[id] = c
	return c
}

// sessionIDValue renders id the way the flow issues it: numbers for the
// chatbot family, strings for journaling.
func sessionIDValue(c *conversation) any {
	if n, err := strconv.Atoi(c.id); err == nil {
		return n
	}
	return c.id
}

func (s *Server) lookupLocked(f flow, id string, a *account) *conversation {
	c, ok := s.convs[id]
	if !ok || c.flow != f || c.owner != a.ID {
		return nil
	}
	return c
}

// exchangeLocked records a user message and the bot's answer.
func (s *Server) exchangeLocked(c *conversation, text string) entry {
	c.add(s.nextID(), "user", text, false)
	c.userTurns++
	complete := c.flow == flowChallenge && c.userTurns >= challengeTurns
	c.add(s.nextID(), "bot", reply(c.flow, text), complete)
	return c.entries[len(c.entries)-1]
}

type messageIn struct {
	SessionID   jsonID `json:"session_id"`
	Message     string `json:"message"`
	SaveHistory *bool  `json:"save_history"`
}

// jsonID accepts a string or a number.
type jsonID string

func (id *jsonID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*id = jsonID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	*id = jsonID(b)
	return nil
}

func (s *Server) handleChatSettings(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())
	s.mu.Lock()
	allow := a.allowHistory
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"allow_chat_history": allow})
}

// handleStart opens a conversation. With replyOnStart the first message is
// answered in the same response, otherwise the client follows up with a
// message call.
func (s *Server) handleStart(f flow, replyOnStart bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in messageIn
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a := accountFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.declineLocked(w, a) {
			return
		}

		c := s.newConversationLocked(f, a.ID, in.Message)
		c.saveHistory = in.SaveHistory == nil || *in.SaveHistory

		out := map[string]any{"session_id": sessionIDValue(c)}
		if replyOnStart && in.Message != "" {
			e := s.exchangeLocked(c, in.Message)
			out["reply"] = e.text
			out["is_session_complete"] = e.complete
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func (s *Server) handleMessage(f flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in messageIn
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if in.Message == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"message": {"This field may not be blank."}})
			return
		}
		a := accountFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		c := s.lookupLocked(f, string(in.SessionID), a)
		if c == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found."})
			return
		}
		e := s.exchangeLocked(c, in.Message)
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":          sessionIDValue(c),
			"reply":               e.text,
			"is_session_complete": e.complete,
		})
	}
}

// handleJournalChat starts a journaling session when no session_id is given
// and continues it otherwise.
func (s *Server) handleJournalChat(w http.ResponseWriter, r *http.Request) {
	var in messageIn
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a := accountFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	var c *conversation
	if in.SessionID == "" {
		if s.declineLocked(w, a) {
			return
		}
		c = s.newConversationLocked(flowJournal, a.ID, in.Message)
	} else if c = s.lookupLocked(flowJournal, string(in.SessionID), a); c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found."})
		return
	}

	e := s.exchangeLocked(c, in.Message)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionIDValue(c), "reply": e.text})
}

func (s *Server) handleHistory(f flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := accountFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		c := s.lookupLocked(f, chi.URLParam(r, "id"), a)
		if c == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}

		// Each backend app renders its history slightly differently.
		out := make([]map[string]any, 0, len(c.entries))
		for _, e := range c.entries {
			switch f {
			case flowMindset, flowJournal:
				out = append(out, map[string]any{"author": e.sender, "message": e.text, "timestamp": e.createdAt})
			case flowChallenge:
				out = append(out, map[string]any{
					"id": e.id, "sender": e.sender, "message": e.text, "is_session_complete": e.complete,
				})
			default:
				out = append(out, map[string]any{"id": e.id, "sender": e.sender, "message": e.text, "created_at": e.createdAt})
			}
		}

		if f == flowJournal {
			writeJSON(w, http.StatusOK, map[string]any{"Entries": out})
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleList(f flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := accountFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		var convs []*conversation
		for _, c := range s.convs {
			if c.flow == f && c.owner == a.ID && (f != flowChatbot || c.saveHistory) {
				convs = append(convs, c)
			}
		}
		sort.Slice(convs, func(i, j int) bool { return convs[i].seq < convs[j].seq })

		out := make([]map[string]any, 0, len(convs))
		for _, c := range convs {
			row := map[string]any{"id": sessionIDValue(c), "created_at": c.createdAt}
			if f == flowJournal {
				row["category"] = c.title
			} else {
				row["title"] = c.title
			}
			out = append(out, row)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleDelete(f flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := accountFrom(r.Context())
		id := chi.URLParam(r, "id")

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.lookupLocked(f, id, a) == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("No %s session %s.", f, id)})
			return
		}
		delete(s.convs, id)
		w.WriteHeader(http.StatusNoContent)
	}
}
