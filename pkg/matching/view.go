package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// EntityView is the comparable form of one uid: every record of the uid
// across result contexts, plus its aliases, folded together.
type EntityView struct {
	UID                 string
	Schema              models.Schema
	Names               []string
	Country             string
	RegistrationNumbers []string
	ExternalIDs         []string
	Tasked              bool
	Origins             []string
	Fingerprints        []string
}

// NewView builds the view of a single entity record and its alias names.
func NewView(entity *models.Entity, aliases []string, fp fingerprint.Fingerprinter) *EntityView {
	b := newViewBuilder(entity.UID)
	b.addEntity(entity)
	for _, name := range aliases {
		b.addName(name)
	}
	return b.build(fp)
}

// BuildViews folds entity records and aliases into one view per uid,
// sorted by uid.
func BuildViews(entities []models.Entity, aliases []models.Alias, fp fingerprint.Fingerprinter) []*EntityView {
	builders := make(map[string]*viewBuilder)
	for i := range entities {
		e := &entities[i]
		b, ok := builders[e.UID]
		if !ok {
			b = newViewBuilder(e.UID)
			builders[e.UID] = b
		}
		b.addEntity(e)
	}
	for _, a := range aliases {
		if b, ok := builders[a.UID]; ok {
			b.addName(a.Name)
		}
	}

	views := make([]*EntityView, 0, len(builders))
	for _, b := range builders {
		views = append(views, b.build(fp))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UID < views[j].UID })
	return views
}

// HasOrigin reports whether any record of the view came from one of origins.
func (v *EntityView) HasOrigin(origins map[string]bool) bool {
	for _, o := range v.Origins {
		if origins[o] {
			return true
		}
	}
	return false
}

type viewBuilder struct {
	view    *EntityView
	names   map[string]bool
	origins map[string]bool
	regs    map[string]bool
	ext     map[string]bool
}

func newViewBuilder(uid string) *viewBuilder {
	return &viewBuilder{
		view:    &EntityView{UID: uid, Schema: models.SchemaOther},
		names:   make(map[string]bool),
		origins: make(map[string]bool),
		regs:    make(map[string]bool),
		ext:     make(map[string]bool),
	}
}

func (b *viewBuilder) addEntity(e *models.Entity) {
	v := b.view
	v.Schema = models.BestSchema([]models.Schema{v.Schema, e.Schema})
	if v.Country == "" {
		v.Country = normalizers.Country(e.Country)
	}
	v.Tasked = v.Tasked || e.Tasked
	b.addName(e.Name)
	if e.Origin != "" && !b.origins[e.Origin] {
		b.origins[e.Origin] = true
		v.Origins = append(v.Origins, e.Origin)
	}
	if id := normalizers.Identifier(e.RegistrationNumber); id != "" && !b.regs[id] {
		b.regs[id] = true
		v.RegistrationNumbers = append(v.RegistrationNumbers, id)
	}
	if id := normalizers.Identifier(e.ExternalID); id != "" && !b.ext[id] {
		b.ext[id] = true
		v.ExternalIDs = append(v.ExternalIDs, id)
	}
}

func (b *viewBuilder) addName(name string) {
	if name == "" || b.names[name] {
		return
	}
	b.names[name] = true
	b.view.Names = append(b.view.Names, name)
}

func (b *viewBuilder) build(fp fingerprint.Fingerprinter) *EntityView {
	v := b.view
	sort.Strings(v.Names)
	sort.Strings(v.Origins)
	sort.Strings(v.RegistrationNumbers)
	sort.Strings(v.ExternalIDs)
	v.Fingerprints = fp.GenerateAll(v.Names)
	return v
}
