package cluster

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"
)

const initialBackoff = 500 * time.Millisecond

// ZKCoordinator reads cluster membership from ZooKeeper, the way SolrCloud
// publishes it: one ephemeral child of the live-nodes path per live member,
// named "host:port_<context>".
type ZKCoordinator struct {
	conn            *zk.Conn
	liveNodesPath   string
	collectionsPath string
	maxBackoff      time.Duration
	logger          *zap.Logger
}

// NewZKCoordinator connects to the ZooKeeper ensemble at hosts.
func NewZKCoordinator(hosts []string, liveNodesPath, collectionsPath string, sessionTimeout, maxBackoff time.Duration, logger *zap.Logger) (*ZKCoordinator, error) {
	conn, _, err := zk.Connect(hosts, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("zookeeper connect failed: %w", err)
	}
	return &ZKCoordinator{
		conn:            conn,
		liveNodesPath:   liveNodesPath,
		collectionsPath: collectionsPath,
		maxBackoff:      maxBackoff,
		logger:          logger,
	}, nil
}

// LiveNodes lists the current live members.
func (z *ZKCoordinator) LiveNodes(ctx context.Context) ([]Endpoint, error) {
	children, _, err := z.conn.Children(z.liveNodesPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", z.liveNodesPath, err)
	}
	return parseLiveNodes(children, z.logger), nil
}

// Watch streams membership snapshots until ctx is cancelled. Each ZooKeeper
// child watch fires once, so the loop re-arms it after every event. While the
// coordination service is unreachable the loop backs off exponentially up to
// the configured cap and sends nothing, leaving the consumer's last snapshot
// in effect (stale but usable).
func (z *ZKCoordinator) Watch(ctx context.Context) (<-chan []Endpoint, error) {
	ch := make(chan []Endpoint, 1)
	go func() {
		defer close(ch)
		backoff := initialBackoff
		for {
			children, _, events, err := z.conn.ChildrenW(z.liveNodesPath)
			if err != nil {
				z.logger.Warn("live-nodes watch failed; retrying",
					zap.Error(err),
					zap.Duration("backoff", backoff),
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > z.maxBackoff {
					backoff = z.maxBackoff
				}
				continue
			}
			backoff = initialBackoff

			select {
			case ch <- parseLiveNodes(children, z.logger):
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-events:
			}
		}
	}()
	return ch, nil
}

// Collections lists the collection names registered with the cluster.
func (z *ZKCoordinator) Collections(ctx context.Context) ([]string, error) {
	children, _, err := z.conn.Children(z.collectionsPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", z.collectionsPath, err)
	}
	sort.Strings(children)
	return children, nil
}

// Close closes the ZooKeeper connection.
func (z *ZKCoordinator) Close() {
	z.conn.Close()
}

// parseLiveNodes converts live-node names ("10.0.0.1:8983_solr") to
// endpoints, skipping entries that do not parse.
func parseLiveNodes(names []string, logger *zap.Logger) []Endpoint {
	eps := make([]Endpoint, 0, len(names))
	for _, name := range names {
		addr := name
		if i := strings.IndexByte(addr, '_'); i >= 0 {
			addr = addr[:i]
		}
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			logger.Warn("skipping unparseable live node", zap.String("node", name))
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			logger.Warn("skipping unparseable live node", zap.String("node", name))
			continue
		}
		eps = append(eps, Endpoint{Host: host, Port: port})
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].Addr() < eps[j].Addr() })
	return eps
}
