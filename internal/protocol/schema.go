package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	SchemaAction = "action.schema.json"
	SchemaTrade  = "trade.schema.json"
	SchemaEnter  = "enter.schema.json"
)

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	names := []string{SchemaAction, SchemaTrade, SchemaEnter}
	for _, name := range names {
		b, err := schemaFS.ReadFile(path.Join("schemas", name))
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
			schemasErr = fmt.Errorf("%s: %w", name, err)
			return
		}
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(name)
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		out[name] = s
	}
	schemas = out
}

// Validate checks raw JSON against one of the embedded request schemas.
func Validate(schema string, raw []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s := schemas[schema]
	if s == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}

func DecodeActionRequest(raw []byte) (ActionRequest, error) {
	var req ActionRequest
	if err := Validate(SchemaAction, raw); err != nil {
		return req, err
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}

func DecodeTradeRequest(raw []byte) (TradeRequest, error) {
	var req TradeRequest
	if err := Validate(SchemaTrade, raw); err != nil {
		return req, err
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}

// DecodeEnterRequest accepts an empty body as an anonymous registration.
func DecodeEnterRequest(raw []byte) (EnterRequest, error) {
	var req EnterRequest
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}
	if err := Validate(SchemaEnter, raw); err != nil {
		return req, err
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}
