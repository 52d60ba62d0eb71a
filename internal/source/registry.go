package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/model"
)

// Registry maps marketplaces to their implementations.
type Registry struct {
	searchers map[model.Source]Searcher
	detailers map[model.Source]Detailer
	order     []model.Source // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		searchers: make(map[model.Source]Searcher),
		detailers: make(map[model.Source]Detailer),
	}
}

// Register adds s as a Searcher, a Detailer, or both, depending on which
// interfaces it implements.
func (r *Registry) Register(s interface{ Source() model.Source }) {
	src := s.Source()
	_, seenSearch := r.searchers[src]
	_, seenDetail := r.detailers[src]
	if !seenSearch && !seenDetail {
		r.order = append(r.order, src)
	}
	if se, ok := s.(Searcher); ok {
		r.searchers[src] = se
	}
	if de, ok := s.(Detailer); ok {
		r.detailers[src] = de
	}
}

// Searcher returns the searcher for src.
func (r *Registry) Searcher(src model.Source) (Searcher, error) {
	s, ok := r.searchers[src]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSource, "no searcher for %s", src)
	}
	return s, nil
}

// Searchers returns the searchers for enabled in the given order, failing on
// the first source without one.
func (r *Registry) Searchers(enabled []model.Source) ([]Searcher, error) {
	out := make([]Searcher, 0, len(enabled))
	for _, src := range enabled {
		s, err := r.Searcher(src)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Detailer returns the detailer for src, if one is registered.
func (r *Registry) Detailer(src model.Source) (Detailer, bool) {
	d, ok := r.detailers[src]
	return d, ok
}

// Sources returns all registered sources in registration order.
func (r *Registry) Sources() []model.Source {
	out := make([]model.Source, len(r.order))
	copy(out, r.order)
	return out
}
