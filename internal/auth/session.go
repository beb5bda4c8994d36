package auth

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/safar/storefront/internal/config"
)

const (
	sessionKeyField = "session_key"
	flashKey        = "_notifications"
)

// SessionStore keeps the anonymous cart key and pending notifications in a
// signed cookie.
type SessionStore struct {
	store sessions.Store
	name  string
}

func NewSessionStore(cfg config.SessionConfig) *SessionStore {
	cs := sessions.NewCookieStore([]byte(cfg.Secret))
	cs.MaxAge(int(cfg.MaxAge.Seconds()))
	cs.Options.Path = "/"
	cs.Options.HttpOnly = true
	cs.Options.Secure = cfg.Secure
	cs.Options.SameSite = http.SameSiteLaxMode

	return &SessionStore{store: cs, name: cfg.CookieName}
}

// SessionKey returns the visitor's session key, minting and persisting one
// on first use. A tampered cookie is replaced rather than rejected.
func (s *SessionStore) SessionKey(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := s.store.Get(r, s.name)
	if err != nil && session == nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	if key, ok := session.Values[sessionKeyField].(string); ok && key != "" {
		return key, nil
	}

	key := uuid.NewString()
	session.Values[sessionKeyField] = key
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return key, nil
}

func (s *SessionStore) AddFlash(w http.ResponseWriter, r *http.Request, message string) error {
	session, err := s.store.Get(r, s.name)
	if err != nil && session == nil {
		return fmt.Errorf("load session: %w", err)
	}

	session.AddFlash(message, flashKey)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Flashes drains pending notifications; each is returned exactly once.
func (s *SessionStore) Flashes(w http.ResponseWriter, r *http.Request) ([]string, error) {
	session, err := s.store.Get(r, s.name)
	if err != nil && session == nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	raw := session.Flashes(flashKey)
	if len(raw) == 0 {
		return []string{}, nil
	}

	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			messages = append(messages, msg)
		}
	}

	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return messages, nil
}
