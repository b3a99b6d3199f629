package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/agentoven/studyhall/internal/errs"
)

// reflectSchema builds an inline JSON schema for T from its json and
// jsonschema struct tags.
func reflectSchema[T any]() (map[string]any, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		// Expanding only applies to a struct root.
		ExpandedStruct:            reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Struct,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	data, err := json.Marshal(r.Reflect(new(T)))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func mustSchema[T any]() map[string]any {
	s, err := reflectSchema[T]()
	if err != nil {
		panic(fmt.Sprintf("tools: reflect schema for %T: %v", *new(T), err))
	}
	return s
}

// validateArgs checks args against an object schema and returns a copy
// with declared defaults filled in. Unknown keys are kept and ignored by
// the typed decode.
func validateArgs(schema map[string]any, args map[string]any) (map[string]any, error) {
	props, _ := schema["properties"].(map[string]any)
	out := make(map[string]any, len(args)+len(props))
	for k, v := range args {
		out[k] = v
	}

	for _, name := range requiredFields(schema) {
		if v, ok := out[name]; !ok || v == nil {
			return nil, errs.New(errs.InvalidArguments, "%s is required", name)
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		v, ok := out[name]
		if !ok || v == nil {
			if def, has := prop["default"]; has {
				out[name] = def
			}
			continue
		}
		if err := checkProperty(name, prop, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func requiredFields(schema map[string]any) []string {
	var out []string
	switch r := schema["required"].(type) {
	case []string:
		out = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func checkProperty(name string, prop map[string]any, v any) error {
	switch prop["type"] {
	case "string":
		s, ok := v.(string)
		if !ok {
			return errs.New(errs.InvalidArguments, "%s must be a string", name)
		}
		if min, ok := number(prop["minLength"]); ok && float64(utf8.RuneCountInString(s)) < min {
			if min <= 1 {
				return errs.New(errs.InvalidArguments, "%s must not be empty", name)
			}
			return errs.New(errs.InvalidArguments, "%s must be at least %v characters", name, min)
		}
	case "integer", "number":
		n, ok := number(v)
		if !ok {
			return errs.New(errs.InvalidArguments, "%s must be a number", name)
		}
		if prop["type"] == "integer" && n != math.Trunc(n) {
			return errs.New(errs.InvalidArguments, "%s must be an integer", name)
		}
		min, hasMin := number(prop["minimum"])
		max, hasMax := number(prop["maximum"])
		if (hasMin && n < min) || (hasMax && n > max) {
			switch {
			case hasMin && hasMax:
				return errs.New(errs.InvalidArguments, "%s must be between %v and %v", name, min, max)
			case hasMin:
				return errs.New(errs.InvalidArguments, "%s must be at least %v", name, min)
			default:
				return errs.New(errs.InvalidArguments, "%s must be at most %v", name, max)
			}
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return errs.New(errs.InvalidArguments, "%s must be a boolean", name)
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// decodeArgs validates raw against schema and decodes it into T.
func decodeArgs[T any](schema map[string]any, raw map[string]any) (T, error) {
	var out T
	normalized, err := validateArgs(schema, raw)
	if err != nil {
		return out, err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(normalized); err != nil {
		return out, errs.Wrap(errs.InvalidArguments, err, "arguments do not match the tool's input shape")
	}
	return out, nil
}
