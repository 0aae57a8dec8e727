package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed envelope.schema.json
var envelopeSchemaJSON string

// Envelope wraps one raw record with its kind. Project is optional and falls
// back to the caller's default project.
type Envelope struct {
	Kind    string          `json:"kind"`
	Project string          `json:"project,omitempty"`
	Record  json.RawMessage `json:"record"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// DecodeEnvelope checks raw JSON against the envelope schema and decodes it.
// Schema failures are ValidationErrors.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, models.NewValidationError("", "invalid JSON: %s", err.Error())
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, models.NewValidationError("record", "%s", schemaMessage(err))
	}

	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(raw), &env); err != nil {
		return nil, models.NewValidationError("", "invalid envelope: %s", err.Error())
	}
	return &env, nil
}

// Decode unmarshals the record into the typed record of its kind.
func (e *Envelope) Decode() (any, error) {
	var target any
	switch e.Kind {
	case KindEntity:
		target = &EntityRecord{}
	case KindLink:
		target = &LinkRecord{}
	case KindAlias:
		target = &AliasRecord{}
	case KindAddress:
		target = &AddressRecord{}
	case KindDocument:
		target = &DocumentRecord{}
	case KindJudgement:
		target = &JudgementRecord{}
	default:
		return nil, models.NewValidationError("kind", "unknown record kind %q", e.Kind)
	}

	if err := json.Unmarshal(e.Record, target); err != nil {
		return nil, models.NewValidationError("record", "cannot decode %s: %s", e.Kind, err.Error())
	}
	return target, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("envelope.schema.json", strings.NewReader(envelopeSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("envelope.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func schemaMessage(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return fmt.Sprintf("%s: %s", leaf.InstanceLocation, leaf.Message)
	}
	return err.Error()
}
