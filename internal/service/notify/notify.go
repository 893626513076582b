package notify

import (
	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
)

// Dispatcher receives terminal purchase events and balance changes.
// It is the boundary to whatever renders them, implementations must
// never block the caller
type Dispatcher interface {
	PurchaseResolved(p models.Purchase)
	BalanceChanged(userID uuid.UUID, w models.Wallet)
	PollFailed(err error)
}

const (
	EventPurchase = "purchase"
	EventBalance  = "balance"
	EventPollErr  = "poll_error"
)

type Event struct {
	Type     string
	Purchase *models.Purchase
	UserID   uuid.UUID
	Wallet   *models.Wallet
	Err      error
}

// ChannelDispatcher fans events out to a buffered channel. Sends are
// non-blocking: a slow or absent consumer drops events instead of
// stalling purchase resolution
type ChannelDispatcher struct {
	events chan Event
	logger logger.Logger
}

func NewChannelDispatcher(buffer int, logger logger.Logger) *ChannelDispatcher {
	return &ChannelDispatcher{
		events: make(chan Event, buffer),
		logger: logger,
	}
}

func (d *ChannelDispatcher) Events() <-chan Event {
	return d.events
}

func (d *ChannelDispatcher) PurchaseResolved(p models.Purchase) {
	d.send(Event{Type: EventPurchase, Purchase: &p, UserID: p.UserID})
}

func (d *ChannelDispatcher) BalanceChanged(userID uuid.UUID, w models.Wallet) {
	d.send(Event{Type: EventBalance, UserID: userID, Wallet: &w})
}

func (d *ChannelDispatcher) PollFailed(err error) {
	d.send(Event{Type: EventPollErr, Err: err})
}

func (d *ChannelDispatcher) send(e Event) {
	select {
	case d.events <- e:
	default:
		d.logger.Warn("Notification dropped, consumer too slow", "type", e.Type)
	}
}

// NoOpDispatcher for wiring without any consumer
type NoOpDispatcher struct{}

func (NoOpDispatcher) PurchaseResolved(models.Purchase)        {}
func (NoOpDispatcher) BalanceChanged(uuid.UUID, models.Wallet) {}
func (NoOpDispatcher) PollFailed(error)                        {}
