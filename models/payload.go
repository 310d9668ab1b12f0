package models

import (
	"encoding/json"
	"fmt"
)

// PayloadSchemaVersion is the current cache payload envelope version.
// Readers reject envelopes carrying any other value.
const PayloadSchemaVersion = 1

// payloadEnvelope is the tagged serialization wrapper for cached data.
type payloadEnvelope struct {
	Schema int                  `json:"schema"`
	Data   *ExternalConceptData `json:"data"`
}

// EncodePayload wraps external concept data in the versioned envelope.
func EncodePayload(d *ExternalConceptData) (string, error) {
	if d == nil {
		return "", fmt.Errorf("encode payload: nil data")
	}
	b, err := json.Marshal(payloadEnvelope{Schema: PayloadSchemaVersion, Data: d})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload unwraps a versioned envelope back into external concept data.
func DecodePayload(payload string) (*ExternalConceptData, error) {
	var env payloadEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if env.Schema != PayloadSchemaVersion {
		return nil, fmt.Errorf("decode payload: unsupported schema %d", env.Schema)
	}
	if env.Data == nil || env.Data.Source == "" {
		return nil, fmt.Errorf("decode payload: empty data")
	}
	return env.Data, nil
}

// Data decodes the entry's payload envelope.
func (e *CacheEntry) Data() (*ExternalConceptData, error) {
	return DecodePayload(e.Payload)
}
