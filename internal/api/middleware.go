package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oitbase/roomledger/internal/identity"
)

type contextKey string

const subjectKey contextKey = "subject"

// SubjectFrom returns the verified identity subject stored by the auth
// middleware.
func SubjectFrom(ctx context.Context) (identity.Subject, bool) {
	sub, ok := ctx.Value(subjectKey).(identity.Subject)
	return sub, ok
}

// WithSubject is used by handler tests to pre-populate the context.
func WithSubject(ctx context.Context, sub identity.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

func (s *RoomLedgerApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *RoomLedgerApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		subject, err := s.ids.Verify(r.Context(), tokenCookie.Value)
		if err != nil {
			s.log.Printf("failed to verify token: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithSubject(r.Context(), subject)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
