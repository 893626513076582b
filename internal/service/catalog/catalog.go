package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
)

const defaultTTL = 5 * time.Minute

type planLister interface {
	ListDataPlans(ctx context.Context, networkID string) ([]models.DataPlan, error)
}

type entry struct {
	plans     []models.DataPlan
	fetchedAt time.Time
}

// Catalog is a read-through cache of data plans per network. Plans change
// rarely, so a stale-for-minutes answer is fine and keeps the provider
// out of the request path.
type Catalog struct {
	client planLister
	logger logger.Logger

	// TTL bounds how long a cached network catalogue is served. May be
	// set before first use
	TTL time.Duration

	mu    sync.Mutex
	cache map[string]entry
	now   func() time.Time
}

func New(client planLister, logger logger.Logger) *Catalog {
	return &Catalog{
		client: client,
		logger: logger,
		TTL:    defaultTTL,
		cache:  make(map[string]entry),
		now:    time.Now,
	}
}

// Plans returns the data plans for the network, fetching from the
// provider when the cached catalogue is missing or stale. An empty
// catalogue is cached too. A failed fetch returns the error and leaves
// any previously cached catalogue untouched.
func (c *Catalog) Plans(ctx context.Context, networkID string) ([]models.DataPlan, error) {
	c.mu.Lock()
	cached, ok := c.cache[networkID]
	c.mu.Unlock()

	if ok && c.now().Sub(cached.fetchedAt) < c.TTL {
		return cached.plans, nil
	}

	plans, err := c.client.ListDataPlans(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data plans: %w", err)
	}

	c.mu.Lock()
	c.cache[networkID] = entry{plans: plans, fetchedAt: c.now()}
	c.mu.Unlock()

	c.logger.Debug("Data plan catalogue refreshed", "network_id", networkID, "plans", len(plans))
	return plans, nil
}

// Plan resolves a single plan by id within a network catalogue
func (c *Catalog) Plan(ctx context.Context, networkID string, planID string) (models.DataPlan, bool, error) {
	plans, err := c.Plans(ctx, networkID)
	if err != nil {
		return models.DataPlan{}, false, err
	}

	for _, p := range plans {
		if p.ID == planID {
			return p, true, nil
		}
	}
	return models.DataPlan{}, false, nil
}
