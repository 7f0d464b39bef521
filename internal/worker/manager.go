package worker

import (
	"context"
	"time"

	"noteforge/internal/domain"
	"noteforge/internal/handlers"
	"noteforge/internal/queue"
)

// TierWorkerCounts sizes each tier's pool, taken from config.QueueConfig.
type TierWorkerCounts struct {
	FastGPU     int
	StandardGPU int
	CPU         int
}

// Manager owns one Pool per tier and runs them all for the daemon's
// lifetime.
type Manager struct {
	pools []*Pool
}

// NewManager wires a Pool for each tier with every registered job type
// accepted (tier routing happens at claim time via cost_tier, not type).
func NewManager(q *queue.Queue, registry handlers.Registry, counts TierWorkerCounts, pollInterval time.Duration) *Manager {
	var types []domain.JobType
	for t := range registry {
		types = append(types, t)
	}
	return &Manager{pools: []*Pool{
		NewPool(q, registry, domain.TierGroupFastGPU, counts.FastGPU, pollInterval, types),
		NewPool(q, registry, domain.TierGroupStandardGPU, counts.StandardGPU, pollInterval, types),
		NewPool(q, registry, domain.TierGroupCPUAndAgnostic, counts.CPU, pollInterval, types),
	}}
}

// Run blocks until ctx is cancelled and every tier's workers have drained
// their in-flight job.
func (m *Manager) Run(ctx context.Context) {
	done := make(chan struct{}, len(m.pools))
	for _, p := range m.pools {
		go func(p *Pool) {
			p.Run(ctx)
			done <- struct{}{}
		}(p)
	}
	for range m.pools {
		<-done
	}
}
