package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	flowCookieName = "__oauth_flow"
	flowTTL        = 5 * time.Minute
)

var ErrNoFlow = errors.New("session: no login in progress")

// Flow is the login transaction remembered between the redirect to the
// identity provider and the callback.
type Flow struct {
	State        string
	CodeVerifier string
	Nonce        string
	ReturnTo     string
}

// FlowStore keeps the Flow in a signed and encrypted cookie.
type FlowStore struct {
	store *sessions.CookieStore
}

// NewFlowStore derives the cookie keys from secret.
func NewFlowStore(secret []byte, secure bool) *FlowStore {
	blockKey := sha256.Sum256(append([]byte("flow-encryption:"), secret...))

	store := sessions.NewCookieStore(secret, blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(flowTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(flowTTL.Seconds()))

	return &FlowStore{store: store}
}

func (f *FlowStore) Save(w http.ResponseWriter, r *http.Request, flow Flow) error {
	s, err := f.store.New(r, flowCookieName)
	if err != nil && s == nil {
		return fmt.Errorf("session: flow: %w", err)
	}
	// a stale or undecodable cookie is simply overwritten
	s.Values = map[any]any{
		"state":    flow.State,
		"verifier": flow.CodeVerifier,
		"nonce":    flow.Nonce,
		"return":   flow.ReturnTo,
	}
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("session: save flow: %w", err)
	}
	return nil
}

func (f *FlowStore) Load(r *http.Request) (Flow, error) {
	s, err := f.store.New(r, flowCookieName)
	if err != nil || s.IsNew {
		return Flow{}, ErrNoFlow
	}

	flow := Flow{
		State:        stringValue(s.Values["state"]),
		CodeVerifier: stringValue(s.Values["verifier"]),
		Nonce:        stringValue(s.Values["nonce"]),
		ReturnTo:     stringValue(s.Values["return"]),
	}
	if flow.State == "" {
		return Flow{}, ErrNoFlow
	}
	return flow, nil
}

// Clear expires the flow cookie.
func (f *FlowStore) Clear(w http.ResponseWriter, r *http.Request) error {
	s, _ := f.store.New(r, flowCookieName)
	s.Values = map[any]any{}
	s.Options.MaxAge = -1
	return s.Save(r, w)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
