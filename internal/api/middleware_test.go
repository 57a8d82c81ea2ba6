package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerRecoversPanic(t *testing.T) {
	ta := newTestApp(t)

	panicking := ta.app.errorHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		panicking.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
}

func TestAuthMiddlewareSetsSubject(t *testing.T) {
	ta := newTestApp(t)
	_, cookie := ta.registerUser(t, "Ann", "ann@example.com")

	var seen bool
	handler := ta.app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "Ann", subject.Name)
		seen = true
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler(rr, req)

	assert.True(t, seen)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
}
