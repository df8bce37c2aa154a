package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// documentSchema catches structural mistakes (misspelled sections, wrong value
// types) before the document is decoded onto the defaults. Semantic range
// checks live in Validate.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "number": {"type": "number"},
    "duration": {"type": ["string", "integer"]},
    "numberMap": {"type": "object", "additionalProperties": {"type": "number"}},
    "surfaceTable": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "rarity": {"type": "number", "minimum": 0, "maximum": 1},
        "tree_proportion": {"type": "number", "minimum": 0},
        "rock_proportion": {"type": "number", "minimum": 0},
        "dead_tree_proportion": {"type": "number", "minimum": 0},
        "tree_sizes": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "small": {"type": "number", "minimum": 0},
            "medium": {"type": "number", "minimum": 0},
            "large": {"type": "number", "minimum": 0}
          }
        }
      }
    }
  },
  "properties": {
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string"},
        "tick_rate": {"$ref": "#/definitions/duration"}
      }
    },
    "terrain": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "seed": {"type": "integer"},
        "slope_angle": {"type": "number"},
        "difficulty": {"type": "string"},
        "chunk_length": {"type": "number"},
        "pool_size": {"type": "integer", "minimum": 2},
        "subdivisions_x": {"type": "integer", "minimum": 1},
        "subdivisions_z": {"type": "integer", "minimum": 1},
        "lateral_margin": {"type": "number"},
        "spawn_z": {"type": "number"},
        "spawn_step": {"type": "number"},
        "normal_probe": {"type": "number"},
        "undulation": {"type": "number"},
        "undulation_frequency": {"type": "number"}
      }
    },
    "path": {"$ref": "#/definitions/numberMap"},
    "jumps": {"$ref": "#/definitions/numberMap"},
    "canyon": {"$ref": "#/definitions/numberMap"},
    "obstacles": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "cell_size": {"type": "number"},
        "jitter": {"type": "number", "minimum": 0, "maximum": 1},
        "track": {"$ref": "#/definitions/surfaceTable"},
        "bank": {"$ref": "#/definitions/surfaceTable"},
        "cliff": {"$ref": "#/definitions/surfaceTable"},
        "plateau": {"$ref": "#/definitions/surfaceTable"}
      }
    },
    "coins": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "arc_chance": {"type": "number"},
        "coins_per_arc": {"type": "integer"},
        "spacing": {"type": "number"},
        "arc_amplitude": {"type": "number"},
        "hover": {"type": "number"}
      }
    },
    "difficulties": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/numberMap"}
    },
    "debug": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "listen_address": {"type": "string"},
        "stream_buffer": {"type": "integer"},
        "write_timeout": {"$ref": "#/definitions/duration"}
      }
    },
    "autopilot": {"$ref": "#/definitions/numberMap"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument checks a raw YAML (or JSON) configuration document against
// the embedded schema.
func ValidateDocument(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(problems, "; "))
}
