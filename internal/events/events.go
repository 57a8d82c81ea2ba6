package events

import (
	"sync"
	"time"

	"github.com/oitbase/roomledger/internal/types"
)

// Event is a process-wide notification observed by the UI layer. Delivery
// is best-effort and in-process; there is no persistence or replay.
type Event interface {
	Name() string
}

type AccountSignedIn struct {
	AccountId string `json:"accountId"`
}

func (AccountSignedIn) Name() string { return "AccountSignedIn" }

type RoomJoined struct {
	AccountId string `json:"accountId"`
	RoomId    string `json:"roomId"`
	IsAdmin   bool   `json:"isAdmin"`
}

func (RoomJoined) Name() string { return "RoomJoined" }

type SubscriptionUpdated struct {
	AccountId string     `json:"accountId"`
	Plan      types.Plan `json:"plan"`
	RoomQuota int        `json:"roomQuota"`
}

func (SubscriptionUpdated) Name() string { return "SubscriptionUpdated" }

type SubscriptionCancelled struct {
	AccountId      string    `json:"accountId"`
	GracePeriodEnd time.Time `json:"gracePeriodEnd"`
}

func (SubscriptionCancelled) Name() string { return "SubscriptionCancelled" }

type SubscriptionReactivated struct {
	AccountId string     `json:"accountId"`
	Plan      types.Plan `json:"plan"`
}

func (SubscriptionReactivated) Name() string { return "SubscriptionReactivated" }

type RoomsDeletedAfterGracePeriod struct {
	AccountId string   `json:"accountId"`
	RoomIds   []string `json:"roomIds"`
}

func (RoomsDeletedAfterGracePeriod) Name() string { return "RoomsDeletedAfterGracePeriod" }

// Bus fans events out to subscribers synchronously, in subscription order.
// Subscribers must not block.
type Bus struct {
	mu     sync.RWMutex
	nextId int
	subs   map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for all events and returns an unsubscribe func.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, fn := range b.subs {
		fn(e)
	}
}
