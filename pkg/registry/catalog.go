package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/costray/costray/pkg/models"
)

// catalogSchema validates the unit catalog file before a run starts. A bad
// catalog entry is a configuration error, not something to discover halfway
// through a multi-hour execution.
const catalogSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "category"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"type": {"type": "string", "minLength": 1},
			"category": {"type": "string", "minLength": 1},
			"config": {"type": "object"}
		},
		"additionalProperties": false
	}
}`

// LoadCatalog reads and validates a JSON unit catalog. Entries without an
// explicit type default to the "static" factory.
func LoadCatalog(path string) ([]models.UnitDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate catalog: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid catalog %s: %s", path, strings.Join(details, "; "))
	}

	var catalog []models.UnitDescriptor

	err = json.Unmarshal(data, &catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog))

	for i := range catalog {
		if catalog[i].Type == "" {
			catalog[i].Type = "static"
		}

		if seen[catalog[i].Name] {
			return nil, fmt.Errorf("duplicate unit name in catalog: %s", catalog[i].Name)
		}

		seen[catalog[i].Name] = true
	}

	return catalog, nil
}
