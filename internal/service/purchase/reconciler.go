package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
)

const (
	defaultCountWorkers  = 4                // Number of workers re-querying ambiguous purchases
	defaultSweepInterval = 10 * time.Second // Interval for producing unresolved purchases
	defaultBatchSize     = 50
	// A pending purchase older than this is considered stuck in flight
	// (the submitter never resolved it) and goes through reconciliation
	defaultPendingGrace = time.Minute
)

// Reconciler resolves purchases stuck without a terminal outcome. The
// producer periodically lists ambiguous and stuck-pending purchases and
// sweeps expired holds; workers re-query the provider with each
// purchase's original reference, never a fresh one.
type Reconciler struct {
	consumer *consumer
	producer *producer
}

func NewReconciler(o *Orchestrator, logger logger.Logger) *Reconciler {
	return &Reconciler{
		consumer: &consumer{
			countWorkers: defaultCountWorkers,
			orchestrator: o,
			logger:       logger,
		},
		producer: &producer{
			interval:     defaultSweepInterval,
			batchSize:    defaultBatchSize,
			pendingGrace: defaultPendingGrace,
			orchestrator: o,
			logger:       logger,
		},
	}
}

func (r *Reconciler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	purchaseChan := make(chan models.Purchase)

	producerStopped := r.producer.produce(ctx, purchaseChan)
	consumerStopped := r.consumer.consume(ctx, purchaseChan)

	go func() {
		defer close(idleStopped)
		defer close(purchaseChan)
		<-producerStopped
		<-consumerStopped
		r.producer.logger.Debug("Reconciler stopped")
	}()

	return idleStopped
}

type producer struct {
	interval     time.Duration
	batchSize    int
	pendingGrace time.Duration
	orchestrator *Orchestrator
	logger       logger.Logger
}

func (p *producer) produce(ctx context.Context, out chan<- models.Purchase) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting reconciler producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Reconciler producer stopped by context")
				return

			case <-ticker.C:
				if err := p.orchestrator.SweepExpiredHolds(ctx, time.Now(), p.batchSize); err != nil {
					p.logger.Error("Failed to sweep expired holds", "error", err)
				}

				purchases, err := p.orchestrator.storage.Purchase().ListUnresolved(
					ctx, time.Now().Add(-p.pendingGrace), p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list unresolved purchases", "error", err)
					continue
				}

				for _, purchase := range purchases {
					select {
					case <-ctx.Done():
						p.logger.Debug("Reconciler producer stopped while sending purchases")
						return
					case out <- purchase:
						p.logger.Debug("Purchase sent for reconciliation", "ref", purchase.Ref)
					}
				}
			}
		}
	}()

	return idleStopped
}

type consumer struct {
	countWorkers int
	orchestrator *Orchestrator
	logger       logger.Logger
}

func (c *consumer) consume(ctx context.Context, in <-chan models.Purchase) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Reconciler consumer stopped")
	}()

	return idleStopped
}

func (c *consumer) worker(ctx context.Context, in <-chan models.Purchase) {
	for {
		select {
		case <-ctx.Done():
			return

		case purchase, ok := <-in:
			if !ok {
				c.logger.Debug("Reconciler worker stopped, input channel closed")
				return
			}

			if _, err := c.orchestrator.Reconcile(ctx, purchase); err != nil {
				c.logger.Error("Failed to reconcile purchase", "ref", purchase.Ref, "error", err)
			}
		}
	}
}
