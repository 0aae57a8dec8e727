package models

import (
	"fmt"
	"strings"
)

// Schema is the closed set of entity types.
type Schema string

const (
	SchemaCompany      Schema = "Company"
	SchemaOrganization Schema = "Organization"
	SchemaPerson       Schema = "Person"
	SchemaAsset        Schema = "Asset"
	SchemaCourtCase    Schema = "CourtCase"
	SchemaBank         Schema = "Bank"
	SchemaBankAccount  Schema = "BankAccount"
	SchemaOther        Schema = "Other"
)

// Schemas lists every valid schema, most specific first.
var Schemas = []Schema{
	SchemaBank,
	SchemaPerson,
	SchemaCompany,
	SchemaOrganization,
	SchemaAsset,
	SchemaBankAccount,
	SchemaCourtCase,
	SchemaOther,
}

// schemaWeights ranks schemas for composite type selection.
var schemaWeights = map[Schema]int{
	SchemaBank:         6,
	SchemaPerson:       5,
	SchemaCompany:      4,
	SchemaOrganization: 3,
	SchemaAsset:        2,
	SchemaBankAccount:  2,
	SchemaCourtCase:    1,
	SchemaOther:        0,
}

// ParseSchema maps an ingested type name onto the closed schema set.
// The empty string is untyped (Other).
func ParseSchema(value string) (Schema, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return SchemaOther, nil
	}
	compact := strings.ReplaceAll(strings.ReplaceAll(trimmed, " ", ""), "_", "")
	for _, s := range Schemas {
		if strings.EqualFold(compact, string(s)) {
			return s, nil
		}
	}
	return "", &ValidationError{Field: "schema", Message: fmt.Sprintf("invalid entity schema %q", value)}
}

// IsValid reports whether s is one of the known schemas.
func (s Schema) IsValid() bool {
	_, ok := schemaWeights[s]
	return ok
}

// Weight returns the merge weight of the schema. Unknown schemas weigh -1.
func (s Schema) Weight() int {
	w, ok := schemaWeights[s]
	if !ok {
		return -1
	}
	return w
}

// BestSchema picks the highest weighted schema. Equal weights resolve to the
// lexically smaller name so the choice does not depend on input order.
func BestSchema(schemas []Schema) Schema {
	best := SchemaOther
	for _, s := range schemas {
		if !s.IsValid() {
			continue
		}
		if s.Weight() > best.Weight() || (s.Weight() == best.Weight() && s < best) {
			best = s
		}
	}
	return best
}
