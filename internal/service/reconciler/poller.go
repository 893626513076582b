package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
	"github.com/nkiryanov/vtumart/internal/service/notify"
)

const defaultPollInterval = 10 * time.Second

type walletFetcher interface {
	FetchWallet(ctx context.Context) (models.WalletSnapshot, error)
}

type snapshotApplier interface {
	ApplyExternalSnapshot(ctx context.Context, userID uuid.UUID, snap models.WalletSnapshot) (models.Wallet, bool, error)
}

// Poller keeps a local wallet reconciled against the provider's
// authoritative balances. It fetches once immediately, then on a fixed
// cadence. A failed round is reported and the cadence continues
// unchanged: the poller never backs off and never disables itself, the
// next tick may well succeed.
type Poller struct {
	client     walletFetcher
	ledger     snapshotApplier
	dispatcher notify.Dispatcher
	logger     logger.Logger

	// Interval between fetches. May be set before Run
	Interval time.Duration
}

func NewPoller(client walletFetcher, ledger snapshotApplier, dispatcher notify.Dispatcher, logger logger.Logger) *Poller {
	if dispatcher == nil {
		dispatcher = notify.NoOpDispatcher{}
	}

	return &Poller{
		client:     client,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
		Interval:   defaultPollInterval,
	}
}

// Run polls until ctx is canceled. The returned channel closes when the
// poller has fully stopped.
func (p *Poller) Run(ctx context.Context, userID uuid.UUID) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting wallet poller", "user_id", userID, "interval", p.Interval)

	go func() {
		defer close(idleStopped)

		// First fetch happens right away, a ticker alone would leave
		// the wallet stale for a whole interval after startup
		p.pollOnce(ctx, userID)

		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Wallet poller stopped by context")
				return
			case <-ticker.C:
				p.pollOnce(ctx, userID)
			}
		}
	}()

	return idleStopped
}

func (p *Poller) pollOnce(ctx context.Context, userID uuid.UUID) {
	if ctx.Err() != nil {
		return
	}

	snap, err := p.client.FetchWallet(ctx)
	if err != nil {
		p.logger.Warn("Wallet poll failed", "error", err)
		p.dispatcher.PollFailed(err)
		return
	}

	wallet, changed, err := p.ledger.ApplyExternalSnapshot(ctx, userID, snap)
	if err != nil {
		p.logger.Error("Failed to apply wallet snapshot", "user_id", userID, "error", err)
		p.dispatcher.PollFailed(err)
		return
	}

	if changed {
		p.logger.Info("Wallet balances updated from provider", "user_id", userID, "main", wallet.Main)
		p.dispatcher.BalanceChanged(userID, wallet)
	}
}
