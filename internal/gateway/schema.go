package gateway

import (
	"encoding/json"
	"errors"
)

var errNotObject = errors.New("arguments are not a JSON object")

func decodeObject(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// schemaParts splits a JSON-schema object into the pieces the Anthropic
// tool definition wants.
func schemaParts(schema map[string]any) (properties any, required []string) {
	properties = schema["properties"]
	if properties == nil {
		properties = map[string]any{}
	}
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	return properties, required
}
