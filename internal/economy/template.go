package economy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidTemplate is returned for shop templates that fail validation
var ErrInvalidTemplate = errors.New("invalid shop template")

// templateSchema describes the optional item payload a shop hands out
const templateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "count": {"type": "integer", "minimum": 1, "maximum": 64},
    "display_name": {"type": "string", "maxLength": 128},
    "lore": {"type": "array", "items": {"type": "string"}},
    "nbt": {"type": "object"}
  },
  "additionalProperties": false
}`

var shopTemplate = jsonschema.MustCompileString("shop_template.schema.json", templateSchema)

// ValidateTemplate checks a shop template; an empty template is valid
func ValidateTemplate(raw string) error {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := shopTemplate.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return nil
}
