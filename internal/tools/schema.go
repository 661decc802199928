package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// parameterSchema reflects the JSON schema for a tool's argument struct.
// Definitions are inlined with no $ref so every provider can consume them.
func parameterSchema(v interface{}) (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = ""

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("reflect parameter schema: %w", err)
	}
	return data, nil
}
