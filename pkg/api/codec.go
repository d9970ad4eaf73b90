package api

import (
	"encoding/json"
	"fmt"
)

// CodecName is the Connect codec name; clients send Content-Type application/json.
const CodecName = "json"

// Codec marshals the plain Go messages in this package as JSON for Connect.
// It replaces Connect's protobuf-backed JSON codec for the same name.
type Codec struct{}

func (Codec) Name() string {
	return CodecName
}

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal decodes data into msg. An empty body decodes to the zero message.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}
