package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// Product metadata is map-like, where JSON is stable and portable across
// tool versions; vector payloads go through the binary index artifact, not
// this codec, so JSON's float encoding cost is not on any hot path.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
