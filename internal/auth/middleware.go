package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

// Verifier turns a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (model.Principal, error)
}

// UserLookup loads an account by ID. A missing account is (nil, nil).
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// AccountVerifier checks the token signature and then the stored account, so
// deleted users are rejected and role changes apply before the token expires.
type AccountVerifier struct {
	tokens *Service
	users  UserLookup
}

// NewAccountVerifier returns a Verifier backed by tokens and users.
func NewAccountVerifier(tokens *Service, users UserLookup) *AccountVerifier {
	return &AccountVerifier{tokens: tokens, users: users}
}

// Verify returns the principal with the role currently stored for the user.
func (v *AccountVerifier) Verify(ctx context.Context, token string) (model.Principal, error) {
	p, err := v.tokens.Verify(token)
	if err != nil {
		return model.Principal{}, err
	}
	u, err := v.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return model.Principal{}, err
	}
	if u == nil {
		return model.Principal{}, apperr.ErrInvalidToken.With("user %d no longer exists", p.UserID)
	}
	p.Role = u.Role
	return p, nil
}

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the verified principal in the request context.
func Authenticate(v Verifier, onErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				onErr(w, r, apperr.ErrNoCredentials)
				return
			}
			p, err := v.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(model.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole returns middleware that checks the principal has one of the
// allowed roles. It must run after Authenticate.
func RequireRole(onErr ErrorWriter, allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := model.PrincipalFromContext(r.Context())
			if !ok {
				onErr(w, r, apperr.ErrNoCredentials)
				return
			}
			if !slices.Contains(allowed, p.Role) {
				onErr(w, r, apperr.ErrRoleDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
