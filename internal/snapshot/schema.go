package snapshot

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema pins the structural shape of a snapshot document. Field
// values stay deliberately loose: the parser tolerates garbage numbers and
// flags them downstream, the schema only rejects documents whose skeleton
// is wrong.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["assets"],
  "properties": {
    "generatedAt": {"type": "string"},
    "assets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["asset"],
        "properties": {
          "asset": {
            "type": "object",
            "required": ["symbol"],
            "properties": {
              "id": {"type": "string"},
              "symbol": {"type": "string", "minLength": 1},
              "name": {"type": "string"}
            }
          },
          "profile": {"type": "string"},
          "direction": {"type": "string"},
          "category": {"type": "string"},
          "regime": {"type": "string"},
          "candles": {"type": "object"},
          "events": {"type": "array"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func snapshotSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("snapshot.json", strings.NewReader(documentSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("snapshot.json")
	})
	return compiledSchema, schemaErr
}
