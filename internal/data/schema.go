package data

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/units.schema.json
var unitsSchemaJSON []byte

//go:embed schema/arena.schema.json
var arenaSchemaJSON []byte

var (
	unitsSchema = mustCompile("units.schema.json", unitsSchemaJSON)
	arenaSchema = mustCompile("arena.schema.json", arenaSchemaJSON)
)

func mustCompile(name string, src []byte) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(src)); err != nil {
		panic(fmt.Sprintf("data: schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("data: schema %s: %v", name, err))
	}
	return s
}

// validate checks a YAML document against a JSON schema. The document is
// round-tripped through encoding/json so the validator sees JSON types.
func validate(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
