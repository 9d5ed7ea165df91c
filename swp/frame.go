// Package swp implements the Shuffle Wire Protocol (SWP): a frame-based
// protocol for moving partitioned record batches between nodes over a
// single bidirectional WebSocket exchange.
//
// One exchange carries one partition of one shuffle. The request frame's
// Cmd field holds the serialized shuffle descriptor as opaque bytes and its
// Path holds the stringified partition id, so the receiver can demultiplex
// concurrent shuffles and partitions over one logical service. The body is
// a self-describing stream: the exchange frame carries the encoded schema,
// each data frame carries one encoded batch, and a complete frame ends the
// stream. The receiver answers with an ack or error frame.
package swp

import (
	"fmt"
	"sync/atomic"
	"time"
)

// FrameType identifies the frame category.
type FrameType string

const (
	// FrameExchange opens a partition transfer; carries Cmd, Path and the
	// encoded schema.
	FrameExchange FrameType = "exchange"

	// FrameData carries one encoded record batch of the stream.
	FrameData FrameType = "data"

	// FrameComplete marks the end of the batch stream.
	FrameComplete FrameType = "complete"

	// FrameAck acknowledges a successfully received exchange.
	FrameAck FrameType = "ack"

	// FrameErr reports an exchange failure.
	FrameErr FrameType = "error"

	FramePing FrameType = "ping"
	FramePong FrameType = "pong"
)

// Frame is the SWP message envelope.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Cmd carries the serialized shuffle descriptor on exchange frames.
	// The transport treats it as opaque bytes; only the two ends of the
	// exchange agree on its shape.
	Cmd []byte `json:"cmd,omitempty" msgpack:"cmd,omitempty"`

	// Path carries routing path elements on exchange frames; the first
	// element is the stringified partition id.
	Path []string `json:"path,omitempty" msgpack:"path,omitempty"`

	// CorrelID links data/complete/ack frames to their exchange frame.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Data carries the frame payload: the encoded schema on exchange
	// frames, one encoded batch on data frames.
	Data []byte `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries failure details on error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes a failure in an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Well-known error codes.
const (
	ErrCodeBadRequest = 400
	ErrCodeInternal   = 500
)

// NewExchangeFrame opens a partition transfer.
func NewExchangeFrame(cmd []byte, path []string, schemaPayload []byte) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameExchange,
		Cmd:       cmd,
		Path:      path,
		Data:      schemaPayload,
		Timestamp: time.Now().UTC(),
	}
}

// NewDataFrame carries one encoded batch of the stream opened by correlID.
func NewDataFrame(correlID string, payload []byte) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameData,
		CorrelID:  correlID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompleteFrame ends the stream opened by correlID.
func NewCompleteFrame(correlID string) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameComplete,
		CorrelID:  correlID,
		Timestamp: time.Now().UTC(),
	}
}

// NewAckFrame acknowledges the exchange identified by correlID.
func NewAckFrame(correlID string) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameAck,
		CorrelID:  correlID,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorFrame reports a failure for the exchange identified by correlID.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

var frameSeq atomic.Uint64

// GenerateFrameID returns a new unique frame ID: a UTC timestamp plus a
// process-wide sequence number, cheap and monotonic.
func GenerateFrameID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102150405"), frameSeq.Add(1))
}
