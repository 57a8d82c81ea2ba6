package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/oitbase/roomledger/internal/billing"
	"github.com/oitbase/roomledger/internal/config"
	"github.com/oitbase/roomledger/internal/directory"
	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/rooms"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
)

const (
	tokenCookieKey       = "token"
	defaultJwtExpiration = time.Hour * 24
)

type RoomLedgerApp struct {
	log            *log.Logger
	mux            *http.Server
	dir            *directory.Directory
	ledger         *rooms.Ledger
	rec            *billing.Reconciler
	provider       billing.EntitlementProvider
	ids            identity.Authenticator
	bus            *events.Bus
	stats          stats.StatsProvider
	store          store.Store
	allowedOrigins []string
}

func NewRoomLedgerApp(mux *http.ServeMux, logger *log.Logger, dir *directory.Directory,
	ledger *rooms.Ledger, rec *billing.Reconciler, provider billing.EntitlementProvider,
	ids identity.Authenticator, bus *events.Bus, sp stats.StatsProvider, st store.Store,
	cfg *config.Config) *RoomLedgerApp {
	s := &RoomLedgerApp{
		log:            logger,
		dir:            dir,
		ledger:         ledger,
		rec:            rec,
		provider:       provider,
		ids:            ids,
		bus:            bus,
		stats:          sp,
		store:          st,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/account", s.authMiddleware(s.account))
	mux.Handle("DELETE /api/account", s.authMiddleware(s.deleteAccount))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("GET /api/rooms/members", s.authMiddleware(s.roomMembers))
	mux.Handle("POST /api/rooms/active", s.authMiddleware(s.setActiveRoom))
	mux.Handle("POST /api/invitations", s.authMiddleware(s.createInvitation))
	mux.Handle("PUT /api/invitations", s.authMiddleware(s.markInvitationSent))
	mux.HandleFunc("POST /api/invitations/redeem", s.redeem)
	mux.Handle("POST /api/demo-codes", s.authMiddleware(s.createDemoCode))
	mux.Handle("PUT /api/demo-codes", s.authMiddleware(s.setDemoCodeActive))
	mux.Handle("GET /api/billing/packages", s.authMiddleware(s.packages))
	mux.Handle("POST /api/billing/purchase", s.authMiddleware(s.purchase))
	mux.Handle("POST /api/billing/restore", s.authMiddleware(s.restore))
	mux.HandleFunc("POST /api/billing/entitlements", s.entitlementsWebhook)
	mux.Handle("POST /api/admin/reconcile", s.authMiddleware(s.reconcileMappings))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *RoomLedgerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *RoomLedgerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *RoomLedgerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *RoomLedgerApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
