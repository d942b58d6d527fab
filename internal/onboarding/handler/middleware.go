package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/agb-digital/onboarding/internal/onboarding/service"
	"github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/httputil"
	"github.com/agb-digital/onboarding/pkg/logger"
)

type contextKey struct{}

// bearerToken extracts the token of an "Authorization: Bearer" header
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthorized("missing authorization header")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}

// SessionMiddleware resolves the bearer session token to its live wizard
// session and stores it in the request context
func SessionMiddleware(svc *service.Service, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				httputil.Error(w, r, err)
				return
			}

			sess, err := svc.Authenticate(token)
			if err != nil {
				log.Debug().Err(err).Msg("session token rejected")
				httputil.Error(w, r, err)
				return
			}

			ctx := httputil.WithSession(r.Context(), sess.ID, sess.Flow)
			ctx = context.WithValue(ctx, contextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *service.Session {
	sess, _ := r.Context().Value(contextKey{}).(*service.Session)
	return sess
}
