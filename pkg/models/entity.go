package models

import (
	"time"

	"github.com/Ramsey-B/fern/internal/database"
)

// Attributes holds the free-form fields of a record that have no typed column.
type Attributes map[string]any

// Entity is a raw, origin-scoped observation.
// Result records carry the query/match uid pair of the enrichment that
// produced them; origin records leave both empty.
type Entity struct {
	Project            string                     `json:"project" db:"project"`
	UID                string                     `json:"uid" db:"uid"`
	QueryUID           string                     `json:"query_uid,omitempty" db:"query_uid"`
	MatchUID           string                     `json:"match_uid,omitempty" db:"match_uid"`
	Origin             string                     `json:"origin" db:"origin"`
	CanonicalUID       string                     `json:"canonical_uid" db:"canonical_uid"`
	Schema             Schema                     `json:"schema" db:"schema"`
	Name               string                     `json:"name" db:"name"`
	Country            string                     `json:"country,omitempty" db:"country"`
	RegistrationNumber string                     `json:"registration_number,omitempty" db:"registration_number"`
	ExternalID         string                     `json:"external_id,omitempty" db:"external_id"`
	Tasked             bool                       `json:"tasked" db:"tasked"`
	Weight             int                        `json:"weight" db:"weight"`
	Active             bool                       `json:"active" db:"active"`
	Data               database.JSONB[Attributes] `json:"data" db:"data"`
	CreatedAt          time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at" db:"updated_at"`
}

// IsResult reports whether the entity was emitted inside a result context.
func (e *Entity) IsResult() bool {
	return e.QueryUID != "" || e.MatchUID != ""
}

// Alias is an alternative name of an entity.
type Alias struct {
	Project      string `json:"project" db:"project"`
	Origin       string `json:"origin" db:"origin"`
	UID          string `json:"uid" db:"uid"`
	Name         string `json:"name" db:"name"`
	CanonicalUID string `json:"canonical_uid" db:"canonical_uid"`
}

// Address is a postal address attached to an entity.
type Address struct {
	Project      string   `json:"project" db:"project"`
	Origin       string   `json:"origin" db:"origin"`
	EntityUID    string   `json:"entity_uid" db:"entity_uid"`
	CanonicalUID string   `json:"canonical_uid" db:"canonical_uid"`
	Address      string   `json:"address" db:"address"`
	Slug         string   `json:"slug" db:"slug"`
	Normalized   *string  `json:"normalized,omitempty" db:"normalized"`
	Latitude     *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64 `json:"longitude,omitempty" db:"longitude"`
}

// Label is the display form of the address.
func (a *Address) Label() string {
	if a.Normalized != nil && *a.Normalized != "" {
		return *a.Normalized
	}
	return a.Address
}

// Document is a source document referencing an entity.
type Document struct {
	Project      string  `json:"project" db:"project"`
	Reference    string  `json:"reference" db:"reference"`
	Origin       string  `json:"origin" db:"origin"`
	EntityUID    string  `json:"entity_uid" db:"entity_uid"`
	CanonicalUID string  `json:"canonical_uid" db:"canonical_uid"`
	URL          string  `json:"url" db:"url"`
	Title        *string `json:"title,omitempty" db:"title"`
	Publisher    *string `json:"publisher,omitempty" db:"publisher"`
}
