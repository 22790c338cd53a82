package tags

import (
	"fmt"
	"strings"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/config"
)

// Resolver turns typed selectors into historian tags.
type Resolver struct {
	templates map[types.SignalKind]string
}

// New validates the templates in cfg and returns a Resolver.
func New(cfg config.TagsConfig) (*Resolver, error) {
	r := &Resolver{templates: map[types.SignalKind]string{
		types.SignalPH:  cfg.PHTemplate,
		types.SignalTCC: cfg.TCCTemplate,
	}}
	for kind, tpl := range r.templates {
		if strings.Count(tpl, "%d") != 1 || strings.Count(tpl, "%") != 1 {
			return nil, fmt.Errorf("tags: %s template %q must contain exactly one %%d verb", kind, tpl)
		}
	}
	return r, nil
}

// Resolve returns the tag for line and kind.
func (r *Resolver) Resolve(line types.ReactorLine, kind types.SignalKind) (types.Tag, error) {
	if !line.Valid() {
		return types.Tag{}, fmt.Errorf("tags: line %d out of range [%d, %d]: %w",
			line, types.MinLine, types.MaxLine, types.ErrInvalidSelector)
	}
	tpl, ok := r.templates[kind]
	if !ok {
		return types.Tag{}, fmt.Errorf("tags: unknown signal %q: %w", kind, types.ErrInvalidSelector)
	}
	return types.Tag{
		Name: fmt.Sprintf(tpl, int(line)),
		Kind: kind,
		Line: line,
	}, nil
}

// All returns every tracked tag, line-major: line 1 pH, line 1 TCC, line 2 pH, ...
func (r *Resolver) All() []types.Tag {
	out := make([]types.Tag, 0, (types.MaxLine-types.MinLine+1)*len(types.SignalKinds))
	for l := types.ReactorLine(types.MinLine); l <= types.MaxLine; l++ {
		for _, kind := range types.SignalKinds {
			tag, _ := r.Resolve(l, kind)
			out = append(out, tag)
		}
	}
	return out
}
