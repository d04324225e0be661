package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/apperr"
	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Trusted identity headers, accepted only when auth.trust_headers is on.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   model.Role
}

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity attached by Identify.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator establishes caller identity from HS256 bearer tokens and,
// optionally, from headers set by a trusted upstream.
type Authenticator struct {
	secret       []byte
	trustHeaders bool
	now          func() time.Time
}

// NewAuthenticator builds an Authenticator from the auth config. An empty
// secret disables bearer tokens.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:       []byte(cfg.TokenSecret),
		trustHeaders: cfg.TrustHeaders,
		now:          time.Now,
	}
}

func (a *Authenticator) parse(raw string) (Identity, error) {
	if len(a.secret) == 0 {
		return Identity{}, errors.New("bearer tokens are not accepted")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Identity{}, err
	}
	return newIdentity(claims.Subject, string(claims.Role))
}

func newIdentity(userID, role string) (Identity, error) {
	id := Identity{UserID: strings.TrimSpace(userID), Role: model.Role(strings.ToLower(strings.TrimSpace(role)))}
	if id.UserID == "" {
		return Identity{}, errors.New("missing user id")
	}
	if id.Role != model.RoleAdmin && id.Role != model.RoleMentor {
		return Identity{}, fmt.Errorf("unknown role %q", role)
	}
	return id, nil
}

// Identify attaches the caller identity to the request context. Requests
// without credentials pass through anonymously; RequireRole rejects them.
// Malformed or invalid credentials are rejected here with 401.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			id  Identity
			err error
			has bool
		)
		switch auth := r.Header.Get("Authorization"); {
		case auth != "":
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				err = errors.New("authorization must be a bearer token")
				break
			}
			id, err = a.parse(strings.TrimSpace(raw))
			has = err == nil
		case a.trustHeaders && r.Header.Get(HeaderUserID) != "":
			id, err = newIdentity(r.Header.Get(HeaderUserID), r.Header.Get(HeaderRole))
			has = err == nil
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid credentials: "+err.Error())
			return
		}
		if has {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "authentication required")
				return
			}
			if !slices.Contains(roles, id.Role) {
				writeError(w, http.StatusForbidden, apperr.CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
