package swp

// Codec defines the serialization contract for SWP frames and their
// payloads. Frame envelopes and payloads (schema, batches) always use the
// same format so a stream stays self-describing end to end.
type Codec interface {
	// Encode serializes a frame envelope to bytes.
	Encode(frame *Frame) ([]byte, error)

	// Decode deserializes bytes into a frame envelope.
	Decode(data []byte) (*Frame, error)

	// Marshal serializes a payload value (schema, batch).
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes a payload value.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier ("json", "msgpack").
	Name() string
}

// Codec names for format selection.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to msgpack, the compact
// binary format batches are normally streamed in.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameJSON:
		return &JSONCodec{}
	case CodecNameMsgpack, "":
		return &MsgpackCodec{}
	default:
		return &MsgpackCodec{}
	}
}
