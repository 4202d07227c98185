package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

const (
	CookieName = "jwt"
	claimSID   = "sid"
)

var (
	ErrNoToken        = errors.New("no session token")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
)

type ctxKey struct{}

// Authenticator issues HS256 JWTs that carry only a session id. The session
// row is the source of truth, so deleting it revokes the token.
type Authenticator struct {
	tokenAuth *jwtauth.JWTAuth
	sessions  store.SessionRepository
	ttl       time.Duration
	now       func() time.Time
}

func New(secret string, sessions store.SessionRepository, ttl time.Duration) *Authenticator {
	return &Authenticator{
		tokenAuth: jwtauth.New("HS256", []byte(secret), nil),
		sessions:  sessions,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Issue opens a session for userID and returns its signed token.
func (a *Authenticator) Issue(ctx context.Context, userID int64) (string, *models.Session, error) {
	now := a.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(a.ttl),
		CreatedAt: now,
	}
	if err := a.sessions.CreateSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	claims := map[string]interface{}{claimSID: session.ID}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, session.ExpiresAt)

	_, token, err := a.tokenAuth.Encode(claims)
	if err != nil {
		return "", nil, fmt.Errorf("encode token: %w", err)
	}
	return token, session, nil
}

// Resolve verifies the token signature and expiry and loads its session.
func (a *Authenticator) Resolve(ctx context.Context, tokenString string) (*models.Session, error) {
	sid, err := a.sessionID(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.GetSession(ctx, sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Expired(a.now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// FromRequest resolves the session from the jwt cookie, a bearer header or
// a token query parameter, in that order.
func (a *Authenticator) FromRequest(r *http.Request) (*models.Session, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, ErrNoToken
	}
	return a.Resolve(r.Context(), token)
}

// Revoke deletes the session behind the token. Unknown or expired tokens are
// not an error.
func (a *Authenticator) Revoke(ctx context.Context, tokenString string) error {
	sid, err := a.sessionID(tokenString)
	if err != nil {
		return nil
	}
	if err := a.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (a *Authenticator) sessionID(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}
	token, err := jwtauth.VerifyToken(a.tokenAuth, tokenString)
	if err != nil {
		return "", ErrInvalidToken
	}
	v, ok := token.Get(claimSID)
	if !ok {
		return "", ErrInvalidToken
	}
	sid, ok := v.(string)
	if !ok || sid == "" {
		return "", ErrInvalidToken
	}
	return sid, nil
}

func TokenFromRequest(r *http.Request) string {
	if t := jwtauth.TokenFromCookie(r); t != "" {
		return t
	}
	if t := jwtauth.TokenFromHeader(r); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (a *Authenticator) Cookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Authenticator) ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*models.Session)
	return s, ok && s != nil
}
