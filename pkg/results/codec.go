package results

import (
	"encoding/json"
	"fmt"
)

// envelope wraps a record with its kind tag so heterogeneous records can be
// stored and replayed from a single stream.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeJSON serializes a record into a kind-tagged JSON envelope.
func EncodeJSON(record Record) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("results: failed to encode %s record: %w", record.Kind(), err)
	}
	return json.Marshal(envelope{Kind: record.Kind(), Data: data})
}

// DecodeJSON deserializes a kind-tagged JSON envelope back into a record.
func DecodeJSON(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("results: failed to decode record envelope: %w", err)
	}
	switch env.Kind {
	case KindFunctions:
		var record FunctionResults
		if err := json.Unmarshal(env.Data, &record); err != nil {
			return nil, fmt.Errorf("results: failed to decode function results: %w", err)
		}
		return &record, nil
	case KindGradients:
		var record GradientResults
		if err := json.Unmarshal(env.Data, &record); err != nil {
			return nil, fmt.Errorf("results: failed to decode gradient results: %w", err)
		}
		return &record, nil
	default:
		return nil, fmt.Errorf("results: unknown record kind: %q", env.Kind)
	}
}
