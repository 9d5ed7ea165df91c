package swp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
	"github.com/p-hoffmann/trexsql-ext-sub003/shuffle"
)

// ExchangeHandler consumes a fully received partition exchange. The
// descriptor is recovered from the exchange frame's command bytes and the
// partition id from its path element; implementations route the batches to
// the right in-progress shuffle (shuffle.Registry does).
type ExchangeHandler interface {
	HandleExchange(ctx context.Context, desc *shuffle.Descriptor, partitionID int, schema batch.Schema, batches []*batch.Batch) error
}

// Server accepts partition exchanges from remote nodes. It mounts a
// WebSocket exchange route plus a health probe on a gin router and
// demultiplexes incoming streams by (shuffle id, partition id).
type Server struct {
	handler ExchangeHandler
	logger  *slog.Logger
	path    string

	ln      net.Listener
	httpSrv *http.Server

	// exchangesReceived counts completed exchanges.
	exchangesReceived atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerExchangePath overrides the exchange route.
func WithServerExchangePath(p string) ServerOption {
	return func(s *Server) { s.path = p }
}

// NewServer creates an exchange server delivering to handler.
func NewServer(handler ExchangeHandler, opts ...ServerOption) *Server {
	s := &Server{
		handler: handler,
		logger:  slog.Default(),
		path:    DefaultExchangePath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine serving the exchange and health routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "exchanges": s.exchangesReceived.Load()})
	})
	r.GET(s.path, s.handleExchange)
	return r
}

// Start listens on addr and serves exchanges until Stop. addr may use
// port 0; Addr reports the bound address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("swp: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.Router()}

	go func() {
		if serveErr := s.httpSrv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("exchange server stopped", slog.String("error", serveErr.Error()))
		}
	}()

	s.logger.Info("exchange server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down and stops accepting new exchanges. Hijacked
// WebSocket connections are outside the HTTP server's shutdown, so
// exchanges already in flight run to completion or until the sender
// closes its end.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// ExchangesReceived reports how many exchanges completed successfully.
func (s *Server) ExchangesReceived() int64 {
	return s.exchangesReceived.Load()
}

// handleExchange upgrades the request to a WebSocket and serves one
// partition exchange on it.
func (s *Server) handleExchange(c *gin.Context) {
	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		s.logger.Warn("exchange upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	s.serveExchange(c.Request.Context(), conn)
}

// serveExchange reads one exchange off the connection: the exchange frame,
// the data frames, the complete frame; then hands the reassembled stream to
// the handler and acks.
func (s *Server) serveExchange(ctx context.Context, conn net.Conn) {
	var (
		codec       Codec
		desc        *shuffle.Descriptor
		partitionID int
		schema      batch.Schema
		batches     []*batch.Batch
		exchangeID  string
	)

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return // connection closed or cancelled sender
		}

		// The first frame's opcode picks the codec for the whole stream.
		if codec == nil {
			if op == ws.OpText {
				codec = &JSONCodec{}
			} else {
				codec = &MsgpackCodec{}
			}
		}

		frame, decErr := codec.Decode(data)
		if decErr != nil {
			s.reject(conn, codec, "", ErrCodeBadRequest, "invalid frame: "+decErr.Error())
			return
		}

		switch frame.Type {
		case FramePing:
			s.writeFrame(conn, codec, &Frame{ID: GenerateFrameID(), Type: FramePong, CorrelID: frame.ID, Timestamp: frame.Timestamp})

		case FrameExchange:
			desc, partitionID, schema, decErr = s.openExchange(frame, codec)
			if decErr != nil {
				s.reject(conn, codec, frame.ID, ErrCodeBadRequest, decErr.Error())
				return
			}
			exchangeID = frame.ID
			batches = batches[:0]

		case FrameData:
			if desc == nil {
				s.reject(conn, codec, frame.ID, ErrCodeBadRequest, "data frame before exchange frame")
				return
			}
			var b batch.Batch
			if err := codec.Unmarshal(frame.Data, &b); err != nil {
				s.reject(conn, codec, exchangeID, ErrCodeBadRequest, "decode batch: "+err.Error())
				return
			}
			batches = append(batches, &b)

		case FrameComplete:
			if desc == nil {
				s.reject(conn, codec, frame.ID, ErrCodeBadRequest, "complete frame before exchange frame")
				return
			}
			if err := s.handler.HandleExchange(ctx, desc, partitionID, schema, batches); err != nil {
				s.reject(conn, codec, exchangeID, ErrCodeInternal, err.Error())
				return
			}
			s.exchangesReceived.Add(1)
			s.logger.Debug("exchange complete",
				slog.String("shuffle_id", desc.ShuffleID),
				slog.Int("partition_id", partitionID),
				slog.Int("batches", len(batches)),
			)
			s.writeFrame(conn, codec, NewAckFrame(exchangeID))
			return

		default:
			s.reject(conn, codec, frame.ID, ErrCodeBadRequest, "unexpected frame type: "+string(frame.Type))
			return
		}
	}
}

// openExchange recovers the routing metadata from an exchange frame:
// descriptor from the command bytes, partition id from the path element,
// schema from the payload.
func (s *Server) openExchange(frame *Frame, codec Codec) (*shuffle.Descriptor, int, batch.Schema, error) {
	var schema batch.Schema

	desc, err := shuffle.UnmarshalBytes(frame.Cmd)
	if err != nil {
		return nil, 0, schema, fmt.Errorf("decode descriptor: %w", err)
	}
	if len(frame.Path) == 0 {
		return nil, 0, schema, fmt.Errorf("shuffle %q: exchange frame missing partition path element", desc.ShuffleID)
	}
	partitionID, err := strconv.Atoi(frame.Path[0])
	if err != nil {
		return nil, 0, schema, fmt.Errorf("shuffle %q: bad partition path element %q", desc.ShuffleID, frame.Path[0])
	}
	if err := codec.Unmarshal(frame.Data, &schema); err != nil {
		return nil, 0, schema, fmt.Errorf("shuffle %q partition %d: decode schema: %w", desc.ShuffleID, partitionID, err)
	}
	return desc, partitionID, schema, nil
}

func (s *Server) reject(conn net.Conn, codec Codec, correlID string, code int, message string) {
	s.logger.Warn("rejecting exchange", slog.String("reason", message))
	s.writeFrame(conn, codec, NewErrorFrame(correlID, code, message))
}

func (s *Server) writeFrame(conn net.Conn, codec Codec, frame *Frame) {
	data, err := codec.Encode(frame)
	if err != nil {
		s.logger.Warn("encode frame failed", slog.String("error", err.Error()))
		return
	}
	op := ws.OpBinary
	if codec.Name() == CodecNameJSON {
		op = ws.OpText
	}
	if err := wsutil.WriteServerMessage(conn, op, data); err != nil {
		s.logger.Warn("write frame failed", slog.String("error", err.Error()))
	}
}
