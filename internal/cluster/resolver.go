// Package cluster tracks live search-cluster membership and picks healthy
// endpoints for query dispatch. Membership comes from a coordination-service
// watch; the endpoint set is swapped copy-on-write so the read path taken by
// every query never blocks on the single writer.
package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/tansaku/internal/models"
	"go.uber.org/zap"
)

// Endpoint is one addressable search-cluster member.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint as "host:port".
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Coordinator is the membership source of truth. Watch delivers a snapshot of
// the live member list each time membership may have changed; the channel
// closes when ctx is cancelled. Implementations keep the last known list
// usable across coordination-service disconnects.
type Coordinator interface {
	LiveNodes(ctx context.Context) ([]Endpoint, error)
	Watch(ctx context.Context) (<-chan []Endpoint, error)
	Collections(ctx context.Context) ([]string, error)
	Close()
}

type memberState struct {
	endpoint       Endpoint
	healthy        bool
	unhealthyUntil time.Time
	lastSeen       time.Time
}

// endpointSet is an immutable membership snapshot. Writers build a fresh set
// and publish it with one atomic pointer store.
type endpointSet struct {
	members []memberState
}

// Resolver exposes health-aware endpoint selection over the coordinator's
// membership view.
type Resolver struct {
	coord    Coordinator
	coolDown time.Duration
	logger   *zap.Logger

	set atomic.Pointer[endpointSet]
	mu  sync.Mutex // serializes writers; readers go through the atomic pointer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewResolver creates a resolver over coord. coolDown is how long a member
// stays demoted after MarkUnhealthy before it is eligible again.
func NewResolver(coord Coordinator, coolDown time.Duration, logger *zap.Logger) *Resolver {
	r := &Resolver{coord: coord, coolDown: coolDown, logger: logger}
	r.set.Store(&endpointSet{})
	return r
}

// Start performs the initial membership fetch and launches the background
// watch. The watch outlives any individual query and stops when Close is
// called or ctx is cancelled.
func (r *Resolver) Start(ctx context.Context) error {
	nodes, err := r.coord.LiveNodes(ctx)
	if err != nil {
		return fmt.Errorf("initial membership fetch failed: %w", err)
	}
	r.apply(nodes)

	watchCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.coord.Watch(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("membership watch failed: %w", err)
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for nodes := range ch {
			r.apply(nodes)
		}
	}()
	return nil
}

// Close stops the background watch and the coordinator connection.
func (r *Resolver) Close() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.coord.Close()
}

// Resolve returns a healthy endpoint chosen uniformly at random. Members past
// their cool-down are eligible again so a transiently-failed node can rejoin
// without a fresh membership event. With no eligible member it forces one
// refresh before failing with ClusterUnavailableError.
func (r *Resolver) Resolve(ctx context.Context) (Endpoint, error) {
	if ep, ok := r.pick(); ok {
		return ep, nil
	}
	if err := r.Refresh(ctx); err != nil {
		return Endpoint{}, &models.ClusterUnavailableError{Reason: err.Error()}
	}
	if ep, ok := r.pick(); ok {
		return ep, nil
	}
	return Endpoint{}, &models.ClusterUnavailableError{Reason: "no healthy cluster member"}
}

func (r *Resolver) pick() (Endpoint, bool) {
	s := r.set.Load()
	now := time.Now()
	eligible := make([]Endpoint, 0, len(s.members))
	for _, m := range s.members {
		if m.healthy || now.After(m.unhealthyUntil) {
			eligible = append(eligible, m.endpoint)
		}
	}
	if len(eligible) == 0 {
		return Endpoint{}, false
	}
	return eligible[rand.Intn(len(eligible))], true
}

// MarkUnhealthy demotes ep for the cool-down period, typically after a failed
// call.
func (r *Resolver) MarkUnhealthy(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.set.Load()
	members := make([]memberState, len(old.members))
	copy(members, old.members)
	for i := range members {
		if members[i].endpoint == ep {
			members[i].healthy = false
			members[i].unhealthyUntil = time.Now().Add(r.coolDown)
		}
	}
	r.set.Store(&endpointSet{members: members})
	r.logger.Warn("endpoint marked unhealthy",
		zap.String("endpoint", ep.Addr()),
		zap.Duration("cool_down", r.coolDown),
	)
}

// Refresh forces a re-read of the coordination-service membership list.
func (r *Resolver) Refresh(ctx context.Context) error {
	nodes, err := r.coord.LiveNodes(ctx)
	if err != nil {
		return fmt.Errorf("membership refresh failed: %w", err)
	}
	r.apply(nodes)
	return nil
}

// apply publishes a new membership snapshot, carrying over the demotion of
// members still within their cool-down.
func (r *Resolver) apply(nodes []Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.set.Load()
	prev := make(map[Endpoint]memberState, len(old.members))
	for _, m := range old.members {
		prev[m.endpoint] = m
	}
	now := time.Now()
	members := make([]memberState, 0, len(nodes))
	for _, ep := range nodes {
		m := memberState{endpoint: ep, healthy: true, lastSeen: now}
		if p, ok := prev[ep]; ok && !p.healthy && now.Before(p.unhealthyUntil) {
			m.healthy = false
			m.unhealthyUntil = p.unhealthyUntil
		}
		members = append(members, m)
	}
	r.set.Store(&endpointSet{members: members})
	r.logger.Debug("membership updated", zap.Int("members", len(members)))
}

// Endpoints returns the current member list (healthy or not), mainly for
// status reporting.
func (r *Resolver) Endpoints() []Endpoint {
	s := r.set.Load()
	eps := make([]Endpoint, 0, len(s.members))
	for _, m := range s.members {
		eps = append(eps, m.endpoint)
	}
	return eps
}

// Collections lists the collections known to the coordination service.
func (r *Resolver) Collections(ctx context.Context) ([]string, error) {
	return r.coord.Collections(ctx)
}
