package metrics

import (
	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/service/notify"
)

// Dispatcher counts events while forwarding them to the wrapped sink
type Dispatcher struct {
	next notify.Dispatcher
}

func NewDispatcher(next notify.Dispatcher) Dispatcher {
	if next == nil {
		next = notify.NoOpDispatcher{}
	}
	return Dispatcher{next: next}
}

func (d Dispatcher) PurchaseResolved(p models.Purchase) {
	PurchasesTotal.WithLabelValues(p.Kind, p.Status).Inc()
	d.next.PurchaseResolved(p)
}

func (d Dispatcher) BalanceChanged(userID uuid.UUID, w models.Wallet) {
	d.next.BalanceChanged(userID, w)
}

func (d Dispatcher) PollFailed(err error) {
	WalletPollFailures.Inc()
	d.next.PollFailed(err)
}
