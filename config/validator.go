package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/alertstream/errors"
)

// documentSchema validates the shape of the configuration document. It is
// deliberately permissive about unknown keys so host-specific sections pass
// through untouched; only the parts the engine consumes are constrained.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "Alerts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "Trigger": {"$ref": "#/definitions/stringOrList"},
          "Target": {"$ref": "#/definitions/stringOrList"},
          "Async": {"type": ["boolean", "string"]},
          "IgnoreCancelled": {"type": "boolean"},
          "Conditions": {"type": "array", "items": {"type": "string"}},
          "Enabled": {"type": "boolean"},
          "Content": {"type": "string"},
          "Embed": {
            "type": "object",
            "properties": {
              "Enabled": {"type": "boolean"},
              "Color": {"type": ["string", "integer"]},
              "Title": {
                "type": "object",
                "properties": {
                  "Text": {"type": "string"},
                  "Url": {"type": "string"}
                }
              },
              "Description": {"type": "string"},
              "Author": {
                "type": "object",
                "properties": {
                  "Name": {"type": "string"},
                  "Url": {"type": "string"},
                  "ImageUrl": {"type": "string"}
                }
              },
              "Footer": {
                "type": "object",
                "properties": {
                  "Text": {"type": "string"},
                  "IconUrl": {"type": "string"}
                }
              },
              "Fields": {"type": "array", "items": {"type": "string"}},
              "ThumbnailUrl": {"type": "string"},
              "ImageUrl": {"type": "string"},
              "Timestamp": {"type": ["boolean", "integer"]}
            }
          },
          "Webhook": {
            "type": "object",
            "properties": {
              "Enable": {"type": "boolean"},
              "Name": {"type": "string"},
              "AvatarUrl": {"type": "string"},
              "Url": {"type": "string"}
            }
          }
        }
      }
    }
  },
  "definitions": {
    "stringOrList": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

// ValidateDocument checks a decoded configuration document against the
// embedded schema. All violations are reported together.
func ValidateDocument(root map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewGoLoader(root)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "ValidateDocument", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", violation.Field(), violation.Description()))
	}
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "ValidateDocument",
		strings.Join(details, "; "))
}
