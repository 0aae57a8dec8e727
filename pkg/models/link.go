package models

import (
	"time"

	"github.com/Ramsey-B/fern/internal/database"
)

// Link is a directed relationship between two entity uids.
type Link struct {
	Project            string                     `json:"project" db:"project"`
	Origin             string                     `json:"origin" db:"origin"`
	SourceUID          string                     `json:"source_uid" db:"source_uid"`
	TargetUID          string                     `json:"target_uid" db:"target_uid"`
	SourceCanonicalUID string                     `json:"source_canonical_uid" db:"source_canonical_uid"`
	TargetCanonicalUID string                     `json:"target_canonical_uid" db:"target_canonical_uid"`
	Schema             string                     `json:"schema" db:"schema"`
	Data               database.JSONB[Attributes] `json:"data" db:"data"`
	CreatedAt          time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at" db:"updated_at"`
}

// IsSelfLink reports whether both canonical endpoints are the same entity.
func (l *Link) IsSelfLink() bool {
	return l.SourceCanonicalUID == l.TargetCanonicalUID
}

// CompositeLink is the merged view of every link between two canonical entities.
type CompositeLink struct {
	Source  string     `json:"source"`
	Target  string     `json:"target"`
	Schema  string     `json:"schema"`
	Origins []string   `json:"origins"`
	Data    Attributes `json:"data,omitempty"`
}
