// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/intorehq/intorehub/internal/app/system/respond"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userName   = "user_name"
	userEmail  = "user_email"
	userRole   = "user_role"
	userGroup  = "user_group"
	sessionTTL = 60 * 60 * 24 * 7 // seconds
)

// Principal is the authenticated caller injected into the request context.
// Hierarchy fields are hex ObjectIDs, empty when the role carries none.
type Principal struct {
	ID            string
	Name          string
	Email         string
	Role          string
	IntoreGroupID string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the principal for this request, if any.
func CurrentUser(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(currentUserKey).(*Principal)
	return p, ok
}

func withUser(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, p))
}

// WithTestUser injects a principal directly; test helper only.
func WithTestUser(r *http.Request, p *Principal) *http.Request {
	return withUser(r, p)
}

// SessionManager owns the cookie store and, together with a token Issuer,
// resolves the caller on each request. API clients send a Bearer token;
// the admin console rides on the session cookie.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	issuer *Issuer
	log    *zap.Logger
}

// NewSessionManager builds the cookie store. The session key must be strong
// in production; secure controls the cookie Secure/SameSite attributes.
func NewSessionManager(sessionKey, name, domain string, secure bool, issuer *Issuer, logger *zap.Logger) (*SessionManager, error) {
	if len(sessionKey) < 32 {
		return nil, fmt.Errorf("session key too short; provide at least 32 random chars")
	}
	store := sessions.NewCookieStore([]byte(sessionKey), securecookie.GenerateRandomKey(32))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   sessionTTL,
		HttpOnly: true,
		Secure:   secure,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	} else {
		store.Options.SameSite = http.SameSiteLaxMode
	}
	return &SessionManager{store: store, name: name, issuer: issuer, log: logger}, nil
}

// SignIn writes the principal into the session cookie.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, p Principal) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = p.ID
	sess.Values[userName] = p.Name
	sess.Values[userEmail] = p.Email
	sess.Values[userRole] = p.Role
	sess.Values[userGroup] = p.IntoreGroupID
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadPrincipal resolves the caller from the session cookie or a Bearer
// token and injects it into the request context. Anonymous requests pass
// through untouched.
func (m *SessionManager) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := m.fromBearer(r); ok {
			next.ServeHTTP(w, withUser(r, p))
			return
		}
		if p, ok := m.fromSession(r); ok {
			next.ServeHTTP(w, withUser(r, p))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SessionManager) fromSession(r *http.Request) (*Principal, bool) {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return nil, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil, false
	}
	return &Principal{
		ID:            getString(sess, userIDKey),
		Name:          getString(sess, userName),
		Email:         getString(sess, userEmail),
		Role:          getString(sess, userRole),
		IntoreGroupID: getString(sess, userGroup),
	}, true
}

func (m *SessionManager) fromBearer(r *http.Request) (*Principal, bool) {
	if m.issuer == nil {
		return nil, false
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return nil, false
	}
	p, err := m.issuer.Verify(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		m.log.Debug("bearer token rejected", zap.Error(err))
		return nil, false
	}
	return p, true
}

func getString(sess *sessions.Session, key string) string {
	s, _ := sess.Values[key].(string)
	return s
}

// RequireSignedIn rejects anonymous requests with a 401 envelope.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			respond.Fail(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only signed-in callers holding one of the given roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentUser(r)
			if !ok {
				respond.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, has := set[strings.ToLower(p.Role)]; !has {
				respond.Fail(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
