package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/neurodash/internal/api/apierr"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/auth"
)

type sessionKey struct{}

// SessionValidator resolves bearer tokens to sessions
type SessionValidator interface {
	ValidateSession(token string) (*auth.Session, error)
}

// Auth rejects requests without a valid session token and attaches the
// caller's session to the request context. Browsers cannot set headers on
// an EventSource, so the token may also arrive as the access_token query
// parameter.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			session, err := sessions.ValidateSession(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.playerID = session.PlayerID
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

// WithSession returns a copy of ctx carrying session
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession returns the session from the request context
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return session
}

// GetPlayer returns the authenticated player from the request context
func GetPlayer(ctx context.Context) *model.Player {
	if session := GetSession(ctx); session != nil {
		return &session.Player
	}
	return nil
}

// MustGetPlayer returns the authenticated player or panics
func MustGetPlayer(ctx context.Context) *model.Player {
	player := GetPlayer(ctx)
	if player == nil {
		panic("no player in context - auth middleware not applied?")
	}
	return player
}
