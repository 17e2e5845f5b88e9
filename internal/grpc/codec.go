package grpc

import "fmt"

// rawFrame carries an already-encoded protobuf message.
type rawFrame struct {
	data []byte
}

// rawCodec passes frames through untouched so messages can be encoded with
// protowire instead of generated types.
type rawCodec struct{}

func (rawCodec) Name() string { return "proto" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("raw codec: unexpected message %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("raw codec: unexpected message %T", v)
	}
	f.data = append(f.data[:0], data...)
	return nil
}
