package main

import (
	"encoding/json"
	"os"

	"github.com/partitiondb/core/schema"
)

// loadSchema reads a table's column layout from a JSON file: an array of
// schema.Column literals. This is enginectl's own convenience format, not
// one of the module's wire formats, since none of those binary layouts
// carry enough information (declared lengths, inline thresholds) to
// reconstruct a schema.Schema standalone; a human-edited sidecar file is
// how a developer tells enginectl what a given table dump contains.
func loadSchema(path string) (*schema.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cols []schema.Column
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, err
	}
	return schema.New(cols...), nil
}
