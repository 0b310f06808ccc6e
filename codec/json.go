package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// It is used for CLI config files, where portable error messages for
// hand-edited input matter more than speed.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used for manifests.
var Default Codec = GoJSON{}
