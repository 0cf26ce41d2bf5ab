package scop

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Model is the YAML interchange form of a built program model. Every set and
// relation travels in the canonical textual syntax.
type Model struct {
	Region     string           `yaml:"region"`
	Context    string           `yaml:"context"`
	Parameters []string         `yaml:"parameters,omitempty"`
	Statements []ModelStatement `yaml:"statements"`
}

// ModelStatement is one statement of the interchange form.
type ModelStatement struct {
	Name       string        `yaml:"name"`
	Domain     string        `yaml:"domain"`
	Scattering string        `yaml:"scattering"`
	Accesses   []ModelAccess `yaml:"accesses,omitempty"`
}

// ModelAccess is one access relation of the interchange form.
type ModelAccess struct {
	Type     string `yaml:"type"`
	Base     string `yaml:"base"`
	Relation string `yaml:"relation"`
}

// Exporter writes models to a storage location.
type Exporter struct {
	fs afs.Service
}

// ExporterOption customises the exporter.
type ExporterOption func(*Exporter)

// WithService sets the storage service, e.g. a memory file system in tests.
func WithService(fs afs.Service) ExporterOption {
	return func(e *Exporter) {
		e.fs = fs
	}
}

// NewExporter creates an exporter backed by the default storage service
// unless an option overrides it.
func NewExporter(options ...ExporterOption) *Exporter {
	e := &Exporter{}
	for _, option := range options {
		option(e)
	}
	if e.fs == nil {
		e.fs = afs.New()
	}
	return e
}

// Model builds the interchange form of the given program model.
func (e *Exporter) Model(s *Scop) *Model {
	exit := "<function exit>"
	if s.region.Exit != nil {
		exit = s.region.Exit.Name()
	}
	m := &Model{
		Region:  s.region.Entry.Name() + " => " + exit,
		Context: s.context.String(),
	}
	for _, p := range s.params {
		m.Parameters = append(m.Parameters, fmt.Sprintf("%s := %s", p.ID.Name, p.Expr))
	}
	for _, st := range s.statements {
		stmt := ModelStatement{
			Name:       st.name,
			Domain:     st.domain.String(),
			Scattering: st.scattering.String(),
		}
		for _, access := range st.accesses {
			stmt.Accesses = append(stmt.Accesses, ModelAccess{
				Type:     access.kind.String(),
				Base:     access.base.Name(),
				Relation: access.Relation().String(),
			})
		}
		m.Statements = append(m.Statements, stmt)
	}
	return m
}

// Export marshals the model and uploads it to the destination URL.
func (e *Exporter) Export(ctx context.Context, s *Scop, URL string) error {
	data, err := yaml.Marshal(e.Model(s))
	if err != nil {
		return err
	}
	return e.fs.Upload(ctx, URL, 0644, bytes.NewReader(data))
}
