package yamlmodel

import (
	"fmt"

	"github.com/aretw0/colloquy/pkg/domain"
)

func (r *resolver) guard(g *guardSpec) (domain.Guard, error) {
	set := 0
	for _, present := range []bool{
		len(g.All) > 0, len(g.Any) > 0, g.Not != nil, g.Exists != "",
		g.Context != "", g.Param != "", g.Event != "", g.Const != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("guard must hold exactly one condition, found %d", set)
	}

	switch {
	case len(g.All) > 0:
		return r.fold(g.All, func(a, b domain.Guard) domain.Guard { return domain.And{Left: a, Right: b} })
	case len(g.Any) > 0:
		return r.fold(g.Any, func(a, b domain.Guard) domain.Guard { return domain.Or{Left: a, Right: b} })
	case g.Not != nil:
		inner, err := r.guard(g.Not)
		if err != nil {
			return nil, err
		}
		return domain.Not{Operand: inner}, nil
	case g.Exists != "":
		return domain.ContextExists{Key: g.Exists}, nil
	case g.Context != "":
		return domain.ContextEquals{Key: g.Context, Value: g.Equals}, nil
	case g.Param != "":
		return domain.ParamEquals{Name: g.Param, Value: g.Equals}, nil
	case g.Event != "":
		def, err := r.event(g.Event)
		if err != nil {
			return nil, err
		}
		return domain.EventIs{Event: def}, nil
	default:
		return domain.Const{Value: *g.Const}, nil
	}
}

func (r *resolver) fold(specs []guardSpec, join func(a, b domain.Guard) domain.Guard) (domain.Guard, error) {
	var out domain.Guard
	for i := range specs {
		g, err := r.guard(&specs[i])
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = g
		} else {
			out = join(out, g)
		}
	}
	return out, nil
}
