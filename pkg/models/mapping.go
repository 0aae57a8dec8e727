package models

import "time"

// Pair is an unordered pair of entity uids stored in a fixed order:
// Left is the greater uid, Right the smaller.
type Pair struct {
	Left  string `json:"left_uid"`
	Right string `json:"right_uid"`
}

// NewPair sorts two uids so that (a, b) and (b, a) produce the same key.
func NewPair(a, b string) Pair {
	if a >= b {
		return Pair{Left: a, Right: b}
	}
	return Pair{Left: b, Right: a}
}

// Contains reports whether uid is one end of the pair.
func (p Pair) Contains(uid string) bool {
	return p.Left == uid || p.Right == uid
}

// Other returns the end of the pair that is not uid.
func (p Pair) Other(uid string) string {
	if p.Left == uid {
		return p.Right
	}
	return p.Left
}

// Mapping is a judgement about whether two entities are the same thing.
type Mapping struct {
	Project   string    `json:"project" db:"project"`
	LeftUID   string    `json:"left_uid" db:"left_uid"`
	RightUID  string    `json:"right_uid" db:"right_uid"`
	Judgement *bool     `json:"judgement" db:"judgement"`
	Decided   bool      `json:"decided" db:"decided"`
	Generated bool      `json:"generated" db:"generated"`
	Score     *float64  `json:"score,omitempty" db:"score"`
	DecidedBy *string   `json:"decided_by,omitempty" db:"decided_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (m *Mapping) Pair() Pair {
	return Pair{Left: m.LeftUID, Right: m.RightUID}
}

// IsMatch reports an explicit "same entity" judgement.
func (m *Mapping) IsMatch() bool {
	return m.Judgement != nil && *m.Judgement
}

// IsDistinct reports an explicit "different entities" judgement.
func (m *Mapping) IsDistinct() bool {
	return m.Judgement != nil && !*m.Judgement
}

// IsSimilar reports a decided mapping without a judgement: related, not the same.
func (m *Mapping) IsSimilar() bool {
	return m.Decided && m.Judgement == nil
}

// Bool returns a pointer to v, for building judgements.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
