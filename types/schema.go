package types

import "encoding/json"

// JSONSchema is the subset of JSON Schema used to declare tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

// NewObjectSchema returns an object schema with no properties.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{Type: "object", Properties: map[string]*JSONSchema{}}
}

func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: "string"}
}

// NewEnumSchema returns a string schema restricted to values.
func NewEnumSchema(values ...string) *JSONSchema {
	return &JSONSchema{Type: "string", Enum: values}
}

// AddProperty sets an optional property. Mark it with AddRequired.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = map[string]*JSONSchema{}
	}
	s.Properties[name] = prop
	return s
}

func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// MustJSON encodes the schema for a ToolSchema. The struct holds only
// strings, maps and slices, so encoding cannot fail for a literal-built
// schema.
func (s *JSONSchema) MustJSON() json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}
