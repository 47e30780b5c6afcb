package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
)

// StaticCoordinator serves a fixed endpoint list, for deployments without a
// coordination service. Membership never changes; health tracking and
// cool-down still apply through the resolver. Collections are listed over the
// cluster's admin API instead of the coordination service.
type StaticCoordinator struct {
	endpoints []Endpoint
	client    *http.Client
}

// NewStaticCoordinator parses "host:port" entries into a fixed member list.
func NewStaticCoordinator(addrs []string, client *http.Client) (*StaticCoordinator, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("static membership requires at least one endpoint")
	}
	if client == nil {
		client = http.DefaultClient
	}
	eps := make([]Endpoint, 0, len(addrs))
	for _, addr := range addrs {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", addr, err)
		}
		eps = append(eps, Endpoint{Host: host, Port: port})
	}
	return &StaticCoordinator{endpoints: eps, client: client}, nil
}

// LiveNodes returns the configured endpoints.
func (s *StaticCoordinator) LiveNodes(ctx context.Context) ([]Endpoint, error) {
	return append([]Endpoint(nil), s.endpoints...), nil
}

// Watch returns a channel that never delivers; static membership has no
// change events. The channel closes when ctx is cancelled.
func (s *StaticCoordinator) Watch(ctx context.Context) (<-chan []Endpoint, error) {
	ch := make(chan []Endpoint)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Collections lists collections via the cluster admin API on the first
// configured endpoint.
func (s *StaticCoordinator) Collections(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("http://%s/solr/admin/collections?action=LIST", s.endpoints[0].Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list collections: status %d", resp.StatusCode)
	}
	var out struct {
		Collections []string `json:"collections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return out.Collections, nil
}

// Close is a no-op for static membership.
func (s *StaticCoordinator) Close() {}
