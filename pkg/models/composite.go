package models

// Composite is the merged, read-only view of every active entity sharing a
// canonical uid. It is never persisted.
type Composite struct {
	UID                 string     `json:"uid"`
	UIDParts            []string   `json:"uid_parts"`
	Schema              Schema     `json:"schema"`
	Name                string     `json:"name"`
	Aliases             []string   `json:"aliases"`
	Origins             []string   `json:"origins"`
	Addresses           []string   `json:"addresses"`
	Country             string     `json:"country,omitempty"`
	RegistrationNumbers []string   `json:"registration_numbers,omitempty"`
	ExternalIDs         []string   `json:"external_ids,omitempty"`
	Tasked              bool       `json:"tasked"`
	Weight              int        `json:"weight"`
	Data                Attributes `json:"data,omitempty"`
}

// Names returns the merged name followed by every alias.
func (c *Composite) Names() []string {
	names := make([]string, 0, len(c.Aliases)+1)
	if c.Name != "" {
		names = append(names, c.Name)
	}
	return append(names, c.Aliases...)
}

// HasOrigin reports whether any member record came from one of origins.
func (c *Composite) HasOrigin(origins ...string) bool {
	for _, o := range c.Origins {
		for _, want := range origins {
			if o == want {
				return true
			}
		}
	}
	return false
}
