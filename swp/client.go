package swp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
	"github.com/p-hoffmann/trexsql-ext-sub003/shuffle"
)

// DefaultExchangePath is the WebSocket route partition exchanges dial.
const DefaultExchangePath = "/exchange"

// Dialer establishes the underlying connection for an exchange. The
// default dials a WebSocket; tests inject counting or failing dialers.
type Dialer func(ctx context.Context, url string) (net.Conn, error)

func defaultDialer(ctx context.Context, url string) (net.Conn, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	return conn, err
}

// Client sends shuffle partitions to remote nodes. Each SendPartition call
// owns its connection and encode state, so calls for different partitions
// or shuffles run concurrently without shared mutable state.
type Client struct {
	codec  Codec
	dialer Dialer
	logger *slog.Logger
	path   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientCodec sets the wire format for frames and payloads.
func WithClientCodec(c Codec) ClientOption {
	return func(cl *Client) { cl.codec = c }
}

// WithDialer replaces the connection dialer.
func WithDialer(d Dialer) ClientOption {
	return func(cl *Client) { cl.dialer = d }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// WithExchangePath overrides the exchange route.
func WithExchangePath(p string) ClientOption {
	return func(cl *Client) { cl.path = p }
}

// NewClient creates a partition transfer client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		codec:  &MsgpackCodec{},
		dialer: defaultDialer,
		logger: slog.Default(),
		path:   DefaultExchangePath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendPartition moves one partition's batches to endpoint as a single
// bidirectional exchange and waits for the remote acknowledgment.
//
// An empty batch list is a deliberate no-op: it succeeds without opening a
// connection, so partitions that produced no rows cost nothing and the
// receiver never waits on a stream that will not arrive.
//
// Any failing stage (connect, encode, transmit, acknowledge) aborts the
// whole send with an error naming the shuffle and partition. Nothing is
// retried here; retry policy belongs to the caller. Cancelling ctx closes
// the underlying connection rather than leaving it half-open.
func (c *Client) SendPartition(ctx context.Context, endpoint string, desc *shuffle.Descriptor, partitionID int, schema batch.Schema, batches []*batch.Batch) error {
	fail := func(stage string, err error) error {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return fmt.Errorf("swp: shuffle %q partition %d: %s: %w", desc.ShuffleID, partitionID, stage, err)
	}

	if len(batches) == 0 {
		c.logger.Debug("skipping empty partition",
			slog.String("shuffle_id", desc.ShuffleID),
			slog.Int("partition_id", partitionID),
		)
		return nil
	}

	cmd, err := desc.MarshalBytes()
	if err != nil {
		return fail("encode descriptor", err)
	}
	schemaPayload, err := c.codec.Marshal(schema)
	if err != nil {
		return fail("encode schema", err)
	}

	c.logger.Debug("sending partition",
		slog.String("shuffle_id", desc.ShuffleID),
		slog.Int("partition_id", partitionID),
		slog.Int("batches", len(batches)),
		slog.String("endpoint", endpoint),
	)

	conn, err := c.dialer(ctx, c.exchangeURL(endpoint))
	if err != nil {
		return fail("connect "+endpoint, err)
	}
	defer conn.Close()

	// Close the connection on cancellation so an abandoned exchange can't
	// hang in a blocking read or write.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	exchange := NewExchangeFrame(cmd, []string{strconv.Itoa(partitionID)}, schemaPayload)
	if err := c.writeFrame(conn, exchange); err != nil {
		return fail("send exchange frame", err)
	}

	for i, b := range batches {
		payload, err := c.codec.Marshal(b)
		if err != nil {
			return fail(fmt.Sprintf("encode batch %d", i), err)
		}
		if err := c.writeFrame(conn, NewDataFrame(exchange.ID, payload)); err != nil {
			return fail(fmt.Sprintf("send batch %d", i), err)
		}
	}

	if err := c.writeFrame(conn, NewCompleteFrame(exchange.ID)); err != nil {
		return fail("send complete frame", err)
	}

	ackData, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		return fail("await ack", err)
	}
	ack, err := c.codec.Decode(ackData)
	if err != nil {
		return fail("decode ack", err)
	}
	if ack.Type == FrameErr {
		msg := "unknown error"
		if ack.Error != nil {
			msg = ack.Error.Message
		}
		return fail("remote rejected exchange", fmt.Errorf("%s", msg))
	}
	if ack.Type != FrameAck {
		return fail("await ack", fmt.Errorf("unexpected frame type %q", ack.Type))
	}

	c.logger.Debug("partition acknowledged",
		slog.String("shuffle_id", desc.ShuffleID),
		slog.Int("partition_id", partitionID),
	)
	return nil
}

// writeFrame encodes and writes one frame. JSON frames go as text
// messages, binary codecs as binary messages, so the receiver can pick
// the codec from the opcode.
func (c *Client) writeFrame(conn net.Conn, frame *Frame) error {
	data, err := c.codec.Encode(frame)
	if err != nil {
		return err
	}
	op := ws.OpBinary
	if c.codec.Name() == CodecNameJSON {
		op = ws.OpText
	}
	return wsutil.WriteClientMessage(conn, op, data)
}

// exchangeURL turns a host:port endpoint into the exchange WebSocket URL.
// Endpoints that already carry a scheme are used as-is.
func (c *Client) exchangeURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "ws://" + endpoint + c.path
}
