package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oitbase/roomledger/internal/directory"
	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/types"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type SetActiveRoomRequest struct {
	RoomId string `json:"room_id"`
}

type CreateInvitationRequest struct {
	RoomId  string `json:"room_id"`
	IsAdmin bool   `json:"is_admin"`
	Phone   string `json:"phone"`
}

type RedeemRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type RedeemResponse struct {
	Account types.Account `json:"account"`
	RoomId  string        `json:"room_id"`
	IsAdmin bool          `json:"is_admin"`
	Demo    bool          `json:"demo"`
}

type DemoCodeRequest struct {
	RoomId string `json:"room_id"`
	Active bool   `json:"active"`
}

// currentAccount resolves the request's verified subject to its account.
func (s *RoomLedgerApp) currentAccount(r *http.Request) (types.Account, *ApiError) {
	subject, ok := SubjectFrom(r.Context())
	if !ok {
		return types.Account{}, NewUnauthorizedError()
	}

	acct, err := s.dir.ResolveAccount(r.Context(), subject.Id)
	if err != nil {
		return types.Account{}, apiErrorFor(err)
	}
	return acct, nil
}

// resolveOrCreate maps a freshly signed-in subject to its account,
// creating the account record on first sign-in.
func (s *RoomLedgerApp) resolveOrCreate(r *http.Request, subject identity.Subject) (types.Account, error) {
	acct, err := s.dir.ResolveAccount(r.Context(), subject.Id)
	if errors.Is(err, directory.ErrNotFound) {
		acct, err = s.dir.CreateAccount(r.Context(), subject.Id, subject.Name, subject.Email)
		if err == nil {
			s.stats.Incr(stats.AccountsCreated)
		}
	}
	if err != nil {
		return types.Account{}, err
	}

	s.bus.Publish(events.AccountSignedIn{AccountId: acct.Id})
	return acct, nil
}

func (s *RoomLedgerApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	subject, token, err := s.ids.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err := s.resolveOrCreate(r, subject)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	s.writeJson(w, http.StatusCreated, acct)
}

func (s *RoomLedgerApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	subject, token, err := s.ids.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err := s.resolveOrCreate(r, subject)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	s.writeJson(w, http.StatusOK, acct)
}

func (s *RoomLedgerApp) session(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err := s.resolveOrCreate(r, subject)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, acct)
}

func (s *RoomLedgerApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *RoomLedgerApp) account(w http.ResponseWriter, r *http.Request) {
	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, acct)
}

func (s *RoomLedgerApp) deleteAccount(w http.ResponseWriter, r *http.Request) {
	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.dir.DeleteAccount(r.Context(), acct.Id); err != nil {
		s.log.Println("delete account:", err)
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr(stats.AccountsDeleted)
	http.SetCookie(w, createJwtCookie("", 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *RoomLedgerApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.ledger.CreateRoom(r.Context(), acct.Id, req.Name)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *RoomLedgerApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.ledger.GetRoom(r.Context(), roomId)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if room.OwnerId != acct.Id && !acct.SuperAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.ledger.DeleteRoom(r.Context(), roomId); err != nil {
		s.log.Println("delete room:", err)
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.ledger.RemoveOwnedRoom(r.Context(), room.OwnerId, roomId); err != nil {
		s.log.Println("remove owned room:", err)
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *RoomLedgerApp) roomMembers(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, ok := acct.RoomAccess[roomId]; !ok && !acct.SuperAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	members, err := s.ledger.Members(r.Context(), roomId)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, members)
}

func (s *RoomLedgerApp) setActiveRoom(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	access, member := acct.RoomAccess[req.RoomId]
	if !member && !acct.SuperAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isAdmin := access.IsAdmin
	viaSuperAdmin := false
	if !member {
		// super admins may enter any room with admin rights
		isAdmin = true
		viaSuperAdmin = true
	}

	if err := s.ledger.SetActiveRoom(r.Context(), acct.Id, req.RoomId, isAdmin, viaSuperAdmin); err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *RoomLedgerApp) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.canAdminister(acct, req.RoomId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inv, err := s.ledger.CreateInvitation(r.Context(), req.RoomId, req.IsAdmin, req.Phone)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, inv)
}

type MarkInvitationSentRequest struct {
	Code   string `json:"code"`
	RoomId string `json:"room_id"`
}

func (s *RoomLedgerApp) markInvitationSent(w http.ResponseWriter, r *http.Request) {
	var req MarkInvitationSentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.canAdminister(acct, req.RoomId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.ledger.MarkInvitationSent(r.Context(), req.Code); err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reconcileMappings runs the dangling-mapping repair pass. Super admin only.
func (s *RoomLedgerApp) reconcileMappings(w http.ResponseWriter, r *http.Request) {
	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !acct.SuperAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	removed, err := s.dir.Reconcile(r.Context())
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *RoomLedgerApp) redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// an authenticated caller redeems onto their account; otherwise this
	// is the name-only signup flow and a fresh account is created
	var account *types.Account
	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		subject, err := s.ids.Verify(r.Context(), cookie.Value)
		if err == nil {
			acct, err := s.dir.ResolveAccount(r.Context(), subject.Id)
			if err != nil {
				errResp := apiErrorFor(err)
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
			account = &acct
		}
	}

	if account == nil && req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	redemption, err := s.ledger.Redeem(r.Context(), req.Code, account, req.Name)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, RedeemResponse{
		Account: redemption.Account,
		RoomId:  redemption.RoomId,
		IsAdmin: redemption.IsAdmin,
		Demo:    redemption.Demo,
	})
}

func (s *RoomLedgerApp) createDemoCode(w http.ResponseWriter, r *http.Request) {
	var req DemoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.canAdminister(acct, req.RoomId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dc, err := s.ledger.CreateDemoCode(r.Context(), req.RoomId)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, dc)
}

func (s *RoomLedgerApp) setDemoCodeActive(w http.ResponseWriter, r *http.Request) {
	var req DemoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, errResp := s.currentAccount(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.canAdminister(acct, req.RoomId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.ledger.SetDemoCodeActive(r.Context(), req.RoomId, req.Active); err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *RoomLedgerApp) canAdminister(acct types.Account, roomId string) bool {
	if acct.SuperAdmin {
		return true
	}
	access, ok := acct.RoomAccess[roomId]
	return ok && access.IsAdmin
}
