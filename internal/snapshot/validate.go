package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed state.schema.json
var stateSchema string

var compiledSchema = jsonschema.MustCompileString("state.schema.json", stateSchema)

// ValidateJSON checks a serialized state record against the wire
// contract. A failure indicates a protocol-contract violation, not a
// user-facing error condition.
func ValidateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode state record: %w", err)
	}
	if err := compiledSchema.Validate(instance); err != nil {
		return fmt.Errorf("state record violates contract: %w", err)
	}
	return nil
}
