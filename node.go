package swarm

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/p-hoffmann/trexsql-ext-sub003/federation"
	"github.com/p-hoffmann/trexsql-ext-sub003/registry"
	"github.com/p-hoffmann/trexsql-ext-sub003/shuffle"
	"github.com/p-hoffmann/trexsql-ext-sub003/swp"
)

// ServiceCategory is the registry category query nodes advertise under.
const ServiceCategory = "query"

// Option configures a Node.
type Option func(*Node) error

// WithConfig replaces the node's configuration.
func WithConfig(cfg Config) Option {
	return func(n *Node) error {
		n.config = cfg
		return nil
	}
}

// WithLogger sets the node's logger, shared with every subsystem the node
// constructs.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

// WithGossipStore sets the gossip store the node advertises through.
// Without one the node runs standalone and skips advertisement.
func WithGossipStore(s registry.Store) Option {
	return func(n *Node) error {
		n.gossip = s
		return nil
	}
}

// WithSchema sets the node's federated schema snapshot.
func WithSchema(s federation.Schema) Option {
	return func(n *Node) error {
		n.schema = s
		return nil
	}
}

// WithPlacement sets the node's table placement snapshot.
func WithPlacement(p *federation.Placement) Option {
	return func(n *Node) error {
		n.placement = p
		return nil
	}
}

// WithCodec sets the wire format for outgoing exchanges.
func WithCodec(c swp.Codec) Option {
	return func(n *Node) error {
		n.codec = c
		return nil
	}
}

// Node wires the fabric together for one cluster member: it serves
// incoming partition exchanges, sends outgoing ones, resolves tables
// through the federated schema, and advertises itself in the service
// registry. Create one with New and functional options; all collaborators
// are explicit, nothing lives in package-level state.
type Node struct {
	config    Config
	logger    *slog.Logger
	gossip    registry.Store
	schema    federation.Schema
	placement *federation.Placement
	codec     swp.Codec

	registry *shuffle.Registry
	client   *swp.Client
	server   *swp.Server
	sender   *shuffle.Sender
	bridge   *registry.Bridge

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	stop      chan struct{}
	loopDone  chan struct{}
}

// New creates a Node from options.
func New(opts ...Option) (*Node, error) {
	n := &Node{
		config: DefaultConfig(),
		logger: slog.Default(),
		codec:  &swp.MsgpackCodec{},
		schema: federation.NewStaticSchema(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	if n.config.NodeName == "" {
		return nil, ErrNoNodeName
	}

	// Callers may hand WithConfig a literal Config instead of starting
	// from DefaultConfig; backfill the interval knobs so a zero value
	// never reaches a ticker.
	defaults := DefaultConfig()
	if n.config.StatusInterval <= 0 {
		n.config.StatusInterval = defaults.StatusInterval
	}
	if n.config.ShuffleStaleAfter <= 0 {
		n.config.ShuffleStaleAfter = defaults.ShuffleStaleAfter
	}

	n.registry = shuffle.NewRegistry(
		shuffle.WithStaleAfter(n.config.ShuffleStaleAfter),
		shuffle.WithRegistryLogger(n.logger),
	)
	n.client = swp.NewClient(
		swp.WithClientCodec(n.codec),
		swp.WithClientLogger(n.logger),
	)
	n.sender = shuffle.NewSender(n.client,
		shuffle.WithMaxInFlight(n.config.MaxInFlight),
		shuffle.WithSenderLogger(n.logger),
	)
	n.server = swp.NewServer(n.registry, swp.WithServerLogger(n.logger))
	if n.gossip != nil {
		bridgeOpts := []registry.BridgeOption{registry.WithBridgeLogger(n.logger)}
		if n.config.RegistryQueueSize > 0 {
			bridgeOpts = append(bridgeOpts, registry.WithAsyncQueue(n.config.RegistryQueueSize))
		}
		n.bridge = registry.NewBridge(n.gossip, bridgeOpts...)
	}
	return n, nil
}

// Registry returns the node's shuffle registry.
func (n *Node) Registry() *shuffle.Registry { return n.registry }

// Sender returns the node's partition sender.
func (n *Node) Sender() *shuffle.Sender { return n.sender }

// Client returns the node's exchange client.
func (n *Node) Client() *swp.Client { return n.client }

// Schema returns the node's federated schema.
func (n *Node) Schema() federation.Schema { return n.schema }

// Placement returns the node's table placement, or nil.
func (n *Node) Placement() *federation.Placement { return n.placement }

// Config returns a copy of the node's configuration.
func (n *Node) Config() Config { return n.config }

// Addr returns the exchange server's bound address, or "" before Start.
func (n *Node) Addr() string { return n.server.Addr() }

// Start binds the exchange server and begins advertising the node. It
// returns once the node is serving; the status republish loop runs until
// Stop.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}

	if err := n.server.Start(n.config.BindAddr); err != nil {
		return err
	}
	n.started = true
	n.startedAt = time.Now()
	n.stop = make(chan struct{})
	n.loopDone = make(chan struct{})

	n.logger.Info("node started",
		slog.String("node", n.config.NodeName),
		slog.String("addr", n.server.Addr()),
	)

	if n.bridge != nil {
		n.bridge.Publish(ctx, n.statusRecord())
		go n.statusLoop()
	} else {
		close(n.loopDone)
	}
	return nil
}

// Stop withdraws the node's advertisement and shuts the exchange server
// down. It is safe to call once after a successful Start.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return ErrNotStarted
	}
	n.started = false

	close(n.stop)
	<-n.loopDone

	if n.bridge != nil {
		n.bridge.Remove(ctx, ServiceCategory, n.config.NodeName)
		n.bridge.Close()
	}

	err := n.server.Stop(ctx)
	n.logger.Info("node stopped", slog.String("node", n.config.NodeName))
	return err
}

// statusLoop republishes the node's record until Stop, keeping uptime and
// any placement changes fresh and repairing registry gaps after outages.
func (n *Node) statusLoop() {
	defer close(n.loopDone)
	ticker := time.NewTicker(n.config.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n.bridge.Publish(ctx, n.statusRecord())
			cancel()
		}
	}
}

// statusRecord builds the node's current advertisement.
func (n *Node) statusRecord() registry.Record {
	host, port := n.advertiseHostPort()
	var uptime int64
	if !n.startedAt.IsZero() {
		uptime = int64(time.Since(n.startedAt).Seconds())
	}
	return registry.Record{
		Category: ServiceCategory,
		Name:     n.config.NodeName,
		Host:     host,
		Port:     port,
		Status:   "running",
		Uptime:   uptime,
		Config: map[string]any{
			"exchange_endpoint": n.advertiseAddr(),
			"tables":            n.schema.TableNames(),
		},
	}
}

// advertiseAddr returns the address other nodes should dial.
func (n *Node) advertiseAddr() string {
	if n.config.AdvertiseAddr != "" {
		return n.config.AdvertiseAddr
	}
	return n.server.Addr()
}

func (n *Node) advertiseHostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(n.advertiseAddr())
	if err != nil {
		return n.advertiseAddr(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
