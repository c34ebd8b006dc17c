package models

// UnitDescriptor is one catalog entry: a named analyzable cloud service and
// the factory type plus configuration used to instantiate its analyzer.
type UnitDescriptor struct {
	Name     string         `json:"name"     validate:"required"`
	Type     string         `json:"type"     validate:"required"`
	Category string         `json:"category" validate:"required"`
	Config   map[string]any `json:"config,omitempty"`
}
