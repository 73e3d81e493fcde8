package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
)

type ctxKey string

const (
	memberKey       ctxKey = "member"
	capabilitiesKey ctxKey = "capabilities"
)

// TokenFinder resolves a plain bearer token to an access token record.
type TokenFinder interface {
	FindByPlainToken(ctx context.Context, plainToken string) (*domain.AccessToken, error)
}

// BearerMiddleware authenticates requests with a bearer token (header or
// "token" query parameter, the latter for websocket clients) and places
// the member plus their capability set in the request context. The
// capability set is derived once here; downstream code never re-derives
// permissions.
//
// With a nil finder (the in-memory fixture mode) the member id is taken
// from the X-Member-ID header instead.
func BearerMiddleware(tokens TokenFinder, members repository.MemberDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memberID := ""

			if tokens == nil {
				memberID = r.Header.Get("X-Member-ID")
			} else {
				plainToken := ""
				if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
					plainToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				}
				if plainToken == "" {
					plainToken = r.URL.Query().Get("token")
				}
				if plainToken == "" {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}

				tok, err := tokens.FindByPlainToken(r.Context(), plainToken)
				if err != nil {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now()) {
					http.Error(w, "Token expired", http.StatusUnauthorized)
					return
				}
				memberID = tok.MemberID
			}

			if memberID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			member, err := members.GetMember(r.Context(), memberID)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), memberKey, member)
			ctx = context.WithValue(ctx, capabilitiesKey, domain.CapabilitiesFor(member.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetMember returns the authenticated member from the request context.
func GetMember(ctx context.Context) (*domain.Member, error) {
	member, ok := ctx.Value(memberKey).(*domain.Member)
	if !ok {
		return nil, errors.New("member not found in context")
	}
	return member, nil
}

// GetCapabilities returns the caller's capability set.
func GetCapabilities(ctx context.Context) domain.Capabilities {
	caps, ok := ctx.Value(capabilitiesKey).(domain.Capabilities)
	if !ok {
		return domain.Capabilities{}
	}
	return caps
}
