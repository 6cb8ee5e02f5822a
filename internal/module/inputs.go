package module

// InputKind discriminates the five input variants a module can declare.
type InputKind string

const (
	KindText      InputKind = "Text"
	KindNumber    InputKind = "Number"
	KindBoolean   InputKind = "Boolean"
	KindSelect    InputKind = "Select"
	KindKeyValues InputKind = "KeyValues"
)

// SelectOption is one choice of a Select input.
type SelectOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HelpLink points the user at external documentation for an input.
type HelpLink struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// InputDefinition declares one configurable input of a module. It is a tagged
// union over the five kinds: Kind selects which Default* field (and which
// kind-specific fields) are meaningful.
type InputDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Kind        InputKind `json:"kind"`

	// Secret inputs (tokens, credentials) are masked with their default when
	// input values are surfaced to untrusted contexts such as shared profiles.
	Secret bool      `json:"secret,omitempty"`
	Help   *HelpLink `json:"help,omitempty"`

	DefaultText   string            `json:"default_text,omitempty"`
	DefaultNumber float64           `json:"default_number,omitempty"`
	DefaultBool   bool              `json:"default_bool,omitempty"`
	DefaultMap    map[string]string `json:"default_map,omitempty"`

	// Select only.
	Options []SelectOption `json:"options,omitempty"`

	// KeyValues only.
	AllowCustomKeys bool              `json:"allow_custom_keys,omitempty"`
	KeyDisplayNames map[string]string `json:"key_display_names,omitempty"`
}

// DefaultValue returns the typed default for this definition's kind.
// KeyValues defaults are copied so callers can't mutate the declaration.
func (d InputDefinition) DefaultValue() any {
	switch d.Kind {
	case KindNumber:
		return d.DefaultNumber
	case KindBoolean:
		return d.DefaultBool
	case KindKeyValues:
		m := make(map[string]string, len(d.DefaultMap))
		for k, v := range d.DefaultMap {
			m[k] = v
		}
		return m
	default:
		return d.DefaultText
	}
}

// ExamplePlaceholder documents one placeholder a module understands, in the
// path-segment form without the module id prefix.
type ExamplePlaceholder struct {
	Placeholder string `json:"placeholder"`
	Description string `json:"description"`
}
