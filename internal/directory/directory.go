package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/types"
)

var (
	// ErrNotFound is returned when an account, mapping or room is absent.
	ErrNotFound = errors.New("not found")

	// ErrPartialWrite marks a non-atomic sequence that failed after a
	// prior write succeeded. It must not be retried blindly; the
	// reconciliation pass repairs the leftover state.
	ErrPartialWrite = errors.New("partial write failure")
)

// RoomDeleter removes a room and every member's access entry for it.
type RoomDeleter interface {
	DeleteRoom(ctx context.Context, roomId string) error
}

// Directory maintains the external-subject-to-account mapping and the
// account records themselves.
type Directory struct {
	store store.Store
	rooms RoomDeleter
	ids   identity.Provider
	log   *log.Logger
}

func NewDirectory(s store.Store, rooms RoomDeleter, ids identity.Provider, logger *log.Logger) *Directory {
	return &Directory{
		store: s,
		rooms: rooms,
		ids:   ids,
		log:   logger,
	}
}

// ResolveAccount looks up the account mapped to an external subject id.
// A missing mapping, a dangling mapping or an unparsable account record
// all resolve to ErrNotFound.
func (d *Directory) ResolveAccount(ctx context.Context, externalSubjectId string) (types.Account, error) {
	mappingPath := store.AuthMappingPath(store.EncodeKey(externalSubjectId))

	raw, err := d.store.Get(ctx, mappingPath)
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return types.Account{}, fmt.Errorf("mapping for subject: %w", ErrNotFound)
		}
		return types.Account{}, fmt.Errorf("read mapping: %w", err)
	}

	var accountId string
	if err := json.Unmarshal(raw, &accountId); err != nil {
		return types.Account{}, fmt.Errorf("decode mapping: %w", ErrNotFound)
	}

	acct, err := d.LoadAccount(ctx, accountId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// dangling mapping; tolerated until the reconciliation
			// pass repairs it
			d.log.Printf("mapping points at missing account %q", accountId)
		}
		return types.Account{}, err
	}

	return acct, nil
}

// CreateAccount allocates an account id, writes the subject mapping, then
// the account record. If the mapping write fails nothing is persisted; if
// the record write fails afterwards the mapping is left dangling and the
// failure is surfaced as ErrPartialWrite.
func (d *Directory) CreateAccount(ctx context.Context, externalSubjectId, name, email string) (types.Account, error) {
	now := time.Now().UTC()
	acct := types.Account{
		Id:         uuid.NewString(),
		Name:       name,
		Email:      email,
		ExternalId: externalSubjectId,
		Plan:       types.PlanNone,
		RoomQuota:  0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mappingPath := store.AuthMappingPath(store.EncodeKey(externalSubjectId))
	if err := d.store.Set(ctx, mappingPath, acct.Id); err != nil {
		return types.Account{}, fmt.Errorf("write mapping: %w", err)
	}

	if err := d.SaveAccount(ctx, acct); err != nil {
		return types.Account{}, fmt.Errorf("%w: mapping written, account record not: %v", ErrPartialWrite, err)
	}

	return acct, nil
}

// LoadAccount reads the account record and its roomAccess children.
func (d *Directory) LoadAccount(ctx context.Context, accountId string) (types.Account, error) {
	raw, err := d.store.Get(ctx, store.UserPath(accountId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return types.Account{}, fmt.Errorf("account %q: %w", accountId, ErrNotFound)
		}
		return types.Account{}, fmt.Errorf("read account: %w", err)
	}

	var acct types.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return types.Account{}, fmt.Errorf("account %q unparsable: %w", accountId, ErrNotFound)
	}

	children, err := d.store.List(ctx, store.RoomAccessPrefix(accountId))
	if err != nil {
		return types.Account{}, fmt.Errorf("list room access: %w", err)
	}

	if len(children) > 0 {
		acct.RoomAccess = make(map[string]types.RoomAccess, len(children))
		for roomId, rawAccess := range children {
			var access types.RoomAccess
			if err := json.Unmarshal(rawAccess, &access); err != nil {
				return types.Account{}, fmt.Errorf("decode access for room %q: %w", roomId, err)
			}
			acct.RoomAccess[roomId] = access
		}
	}

	return acct, nil
}

// ListAccountIds enumerates every account record id.
func (d *Directory) ListAccountIds(ctx context.Context) ([]string, error) {
	children, err := d.store.List(ctx, store.UsersPrefix)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	ids := make([]string, 0, len(children))
	for id := range children {
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveAccount writes the account record. RoomAccess entries live at child
// paths and are never embedded in the record itself.
func (d *Directory) SaveAccount(ctx context.Context, acct types.Account) error {
	doc := acct
	doc.RoomAccess = nil
	doc.UpdatedAt = time.Now().UTC()
	return d.store.Set(ctx, store.UserPath(acct.Id), doc)
}
