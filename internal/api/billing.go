package api

import (
	"encoding/json"
	"net/http"

	"github.com/oitbase/roomledger/internal/billing"
	"github.com/oitbase/roomledger/internal/types"
)

type PurchaseRequest struct {
	Plan string `json:"plan"`
}

type EntitlementsWebhookRequest struct {
	AccountId    string   `json:"account_id"`
	Entitlements []string `json:"entitlements"`
}

func (s *RoomLedgerApp) packages(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, billing.DefaultPackages())
}

func (s *RoomLedgerApp) purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	plan, err := types.ParsePlan(req.Plan)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.rec.Purchase(r.Context(), acct.Id, plan); err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err = s.dir.LoadAccount(r.Context(), acct.Id)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, acct)
}

func (s *RoomLedgerApp) restore(w http.ResponseWriter, r *http.Request) {
	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.rec.Restore(r.Context(), acct.Id); err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err := s.dir.LoadAccount(r.Context(), acct.Id)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, acct)
}

// entitlementsWebhook is the billing provider's push delegate. It is
// unauthenticated by design: payloads name the account directly and the
// reconciler re-verifies entitlements against the provider before any
// destructive transition.
func (s *RoomLedgerApp) entitlementsWebhook(w http.ResponseWriter, r *http.Request) {
	var req EntitlementsWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.rec.HandleEntitlementsChanged(r.Context(), req.AccountId, req.Entitlements); err != nil {
		s.log.Println("entitlements webhook:", err)
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
