package tuning

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const scenarioSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "scenario",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name":             {"type": "string"},
    "seed":             {"type": "integer"},
    "population":       {"type": "integer", "minimum": 1},
    "initial":          {"type": "integer", "minimum": 0},
    "max_contacts":     {"type": "integer", "minimum": 0},
    "vaccination_prob": {"type": "number", "minimum": 0, "maximum": 1},
    "exposed_days":     {"type": "integer", "minimum": 0},
    "infected_days":    {"type": "integer", "minimum": 1},
    "recovery_prob":    {"type": "number", "minimum": 0, "maximum": 1},
    "max_rounds":       {"type": "integer", "minimum": 1},
    "verbose":          {"type": "boolean"},
    "transmission": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "exposed":  {"type": "number", "minimum": 0, "maximum": 1},
        "infected": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
)

func scenarioSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		schema = jsonschema.MustCompileString("scenario.schema.json", scenarioSchemaJSON)
	})
	return schema
}
