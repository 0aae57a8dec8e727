// Package ingest validates incoming records and writes them to the stores.
package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Record kinds carried by envelopes.
const (
	KindEntity    = "entity"
	KindLink      = "link"
	KindAlias     = "alias"
	KindAddress   = "address"
	KindDocument  = "document"
	KindJudgement = "judgement"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type EntityRecord struct {
	Origin             string            `json:"origin" validate:"required"`
	UID                string            `json:"uid" validate:"required"`
	QueryUID           string            `json:"query_uid,omitempty"`
	MatchUID           string            `json:"match_uid,omitempty"`
	Schema             string            `json:"schema"`
	Name               string            `json:"name"`
	Country            string            `json:"country,omitempty"`
	RegistrationNumber string            `json:"registration_number,omitempty"`
	ExternalID         string            `json:"external_id,omitempty"`
	Tasked             bool              `json:"tasked"`
	Weight             int               `json:"weight" validate:"gte=0"`
	Data               models.Attributes `json:"data,omitempty"`
}

type LinkRecord struct {
	Origin string            `json:"origin" validate:"required"`
	Source string            `json:"source" validate:"required"`
	Target string            `json:"target" validate:"required"`
	Schema string            `json:"schema"`
	Data   models.Attributes `json:"data,omitempty"`
}

type AliasRecord struct {
	Origin string `json:"origin" validate:"required"`
	UID    string `json:"uid" validate:"required"`
	Name   string `json:"name" validate:"required"`
}

type AddressRecord struct {
	Origin     string   `json:"origin" validate:"required"`
	UID        string   `json:"uid" validate:"required"`
	Address    string   `json:"address" validate:"required"`
	Normalized *string  `json:"normalized,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

type DocumentRecord struct {
	Origin    string  `json:"origin" validate:"required"`
	UID       string  `json:"uid" validate:"required"`
	Reference string  `json:"reference" validate:"required"`
	URL       string  `json:"url" validate:"omitempty,url"`
	Title     *string `json:"title,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
}

type JudgementRecord struct {
	Left      string   `json:"left_uid" validate:"required"`
	Right     string   `json:"right_uid" validate:"required,nefield=Left"`
	Judgement *bool    `json:"judgement"`
	Decided   bool     `json:"decided"`
	Score     *float64 `json:"score,omitempty"`
	DecidedBy string   `json:"decided_by,omitempty"`
}

// Validate checks the struct tags of a record and reports the first failing
// field as a ValidationError.
func Validate(record any) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return models.NewValidationError(fe.Field(), "failed rule '%s'", ruleName(fe))
	}
	return models.NewValidationError("", "%s", err.Error())
}

// EntityFromAttributes builds an entity record from a loose attribute map as
// produced by crawlers. Known keys fill typed fields, everything else lands
// in Data.
func EntityFromAttributes(origin string, attrs map[string]any) (*EntityRecord, error) {
	rec := &EntityRecord{Origin: origin, Data: models.Attributes{}}

	for key, value := range attrs {
		switch key {
		case "uid", "id":
			rec.UID = toString(value)
		case "schema", "type":
			rec.Schema = toString(value)
		case "name":
			rec.Name = toString(value)
		case "country":
			rec.Country = toString(value)
		case "registration_number":
			rec.RegistrationNumber = toString(value)
		case "external_id":
			rec.ExternalID = toString(value)
		case "query_uid":
			rec.QueryUID = toString(value)
		case "match_uid":
			rec.MatchUID = toString(value)
		case "tasked":
			rec.Tasked = parseTasked(value)
		case "weight":
			w, err := parseWeight(value)
			if err != nil {
				return nil, err
			}
			rec.Weight = w
		default:
			rec.Data[key] = value
		}
	}
	return rec, nil
}

func parseWeight(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		w, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, models.NewValidationError("weight", "invalid weight %q", v)
		}
		return w, nil
	}
	return 0, models.NewValidationError("weight", "invalid weight %v", value)
}

func parseTasked(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true") || strings.TrimSpace(v) == "1"
	case int:
		return v == 1
	case float64:
		return v == 1
	}
	return false
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func ruleName(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
