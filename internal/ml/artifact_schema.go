package ml

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// artifactSchema is the structural contract of an exported model. Semantic
// checks (tree shape, coefficient width) happen in buildModel.
const artifactSchema = `{
  "type": "object",
  "required": ["model_type", "classes"],
  "properties": {
    "model_type": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "feature_names": {"type": "array", "items": {"type": "string"}},
    "n_features": {"type": "integer", "minimum": 0},
    "classes": {
      "type": "array",
      "minItems": 2,
      "items": {"type": ["string", "number", "boolean"]}
    },
    "estimators": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["children_left", "children_right", "feature", "threshold", "value"],
        "properties": {
          "children_left": {"type": "array", "items": {"type": "integer"}},
          "children_right": {"type": "array", "items": {"type": "integer"}},
          "feature": {"type": "array", "items": {"type": "integer"}},
          "threshold": {"type": "array", "items": {"type": "number"}},
          "value": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}
        }
      }
    },
    "coef": {"type": "array", "items": {"type": "number"}},
    "intercept": {"type": "number"}
  }
}`

var artifactSchemaLoader = gojsonschema.NewStringLoader(artifactSchema)

func validateArtifact(data []byte) error {
	result, err := gojsonschema.Validate(artifactSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidArtifact, strings.Join(errs, "; "))
	}
	return nil
}
