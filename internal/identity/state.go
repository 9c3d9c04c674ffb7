package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// Session keys holding the persisted identity.
const (
	SessionKeyRecord     = "record"
	SessionKeyRole       = "role"
	SessionKeyRememberMe = "rememberMe"
)

// Listener observes principal changes. prev or next may be nil.
type Listener func(st *State, prev, next *Principal)

// State is the per-session identity store. It is rehydrated from the session
// on every request and is the only place the current principal lives.
type State struct {
	sess      *shared.Session
	principal *Principal
	remember  bool
	listeners []Listener
}

// LoadState rehydrates the identity persisted in sess. A missing, corrupt or
// inconsistent record yields an unauthenticated state and is wiped.
func LoadState(sess *shared.Session) *State {
	st := &State{sess: sess}
	if sess == nil {
		return st
	}
	raw := sess.Get(SessionKeyRecord)
	if raw == "" {
		return st
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == "" || !p.Role.Valid() || sess.Get(SessionKeyRole) != p.Role.String() {
		st.wipe()
		return st
	}
	st.principal = &p
	st.remember = sess.Get(SessionKeyRememberMe) == "true"
	return st
}

// NewDetachedState returns a state holding p that is not bound to a session.
// Changes to it are not persisted.
func NewDetachedState(p *Principal) *State {
	return &State{principal: p}
}

// Principal returns the current principal or nil.
func (s *State) Principal() *Principal {
	if s == nil {
		return nil
	}
	return s.principal
}

// Authenticated reports whether a principal is present.
func (s *State) Authenticated() bool {
	return s.Principal() != nil
}

// RememberMe reports whether the session outlives the browser.
func (s *State) RememberMe() bool {
	return s != nil && s.remember
}

// Session exposes the backing session, nil outside a request.
func (s *State) Session() *shared.Session {
	if s == nil {
		return nil
	}
	return s.sess
}

// Subscribe registers fn for principal changes; listeners run synchronously.
func (s *State) Subscribe(fn Listener) {
	if s == nil || fn == nil {
		return
	}
	s.listeners = append(s.listeners, fn)
}

func (s *State) set(p *Principal, remember bool) {
	prev := s.principal
	s.principal = p
	s.remember = remember
	if s.sess != nil {
		data, _ := json.Marshal(p)
		s.sess.Renew()
		s.sess.Set(SessionKeyRecord, string(data))
		s.sess.Set(SessionKeyRole, p.Role.String())
		s.sess.Set(SessionKeyRememberMe, boolString(remember))
		s.sess.SetPersistent(remember)
	}
	s.notify(prev, p)
}

func (s *State) replace(p *Principal) {
	prev := s.principal
	s.principal = p
	if s.sess != nil {
		data, _ := json.Marshal(p)
		s.sess.Set(SessionKeyRecord, string(data))
	}
	s.notify(prev, p)
}

func (s *State) clear() {
	prev := s.principal
	s.principal = nil
	s.remember = false
	if s.sess != nil {
		s.wipe()
		s.sess.Renew()
		s.sess.SetPersistent(false)
	}
	if prev != nil {
		s.notify(prev, nil)
	}
}

func (s *State) wipe() {
	s.sess.Delete(SessionKeyRecord)
	s.sess.Delete(SessionKeyRole)
	s.sess.Delete(SessionKeyRememberMe)
}

func (s *State) notify(prev, next *Principal) {
	for _, fn := range s.listeners {
		fn(s, prev, next)
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

type stateContextKey struct{}

// ContextWithState stores the identity state in context.
func ContextWithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, st)
}

// StateFromContext extracts the identity state. It never returns nil.
func StateFromContext(ctx context.Context) *State {
	if st, ok := ctx.Value(stateContextKey{}).(*State); ok && st != nil {
		return st
	}
	return &State{}
}

// PrincipalFromContext is shorthand for StateFromContext(ctx).Principal().
func PrincipalFromContext(ctx context.Context) *Principal {
	return StateFromContext(ctx).Principal()
}

// Middleware rehydrates the identity state from the request session and
// attaches listeners before any handler can change it.
func Middleware(listeners ...Listener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := LoadState(shared.SessionFromContext(r.Context()))
			for _, fn := range listeners {
				st.Subscribe(fn)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), st)))
		})
	}
}
