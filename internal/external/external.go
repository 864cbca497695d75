// Package external defines the fallback lookup against national open-data
// portals, consulted only when a cell cannot be answered from the
// municipality's own documents.
package external

import (
	"context"
	"errors"
)

// ErrNoData means the source has no value for the cell. Callers try the
// next source; any other error aborts the lookup chain.
var ErrNoData = errors.New("external: no data")

// Value is one externally sourced data point.
type Value struct {
	Value      float64
	Source     string
	URL        string
	Confidence float64
}

// Source answers (comune, indicator, year) questions from one portal.
type Source interface {
	Name() string
	Query(ctx context.Context, comune, indicator string, year int) (Value, error)
}

// Registry tries sources in registration order and returns the first hit.
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry over the given sources.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// Query returns the first source's answer, or ErrNoData when every source
// comes up empty.
func (r *Registry) Query(ctx context.Context, comune, indicator string, year int) (Value, error) {
	for _, s := range r.sources {
		v, err := s.Query(ctx, comune, indicator, year)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNoData) {
			return Value{}, err
		}
	}
	return Value{}, ErrNoData
}

// DefaultSources lists the national portals in lookup order. Each is a
// placeholder until its API integration lands; all currently report
// ErrNoData so the pipeline records NOT_FOUND honestly.
func DefaultSources() []Source {
	return []Source{
		stubSource{name: "istat"},
		stubSource{name: "mef"},
		stubSource{name: "ispra"},
		stubSource{name: "bdap"},
	}
}

type stubSource struct {
	name string
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Query(ctx context.Context, comune, indicator string, year int) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	return Value{}, ErrNoData
}
