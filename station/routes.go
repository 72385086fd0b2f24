package station

import (
	"fmt"

	"nyiyui.ca/hato/rendo/layout"
	"nyiyui.ca/hato/rendo/model"
)

func (b *builder) routes() {
	for _, lr := range b.doc.routes {
		r, err := b.route(lr.line, lr.item)
		if err != nil {
			b.warn(lr.line, "route %d-%d: %w", lr.item.from, lr.item.to, err)
			continue
		}
		if _, dup := b.st.Route(r.From, r.To, r.Intermediates...); dup {
			b.warn(lr.line, "duplicate route %s, keeping the first", r.Name())
			continue
		}
		b.st.Routes = append(b.st.Routes, r)
	}
}

func (b *builder) route(l line, it routeItem) (model.TrainRouteCommand, error) {
	var r model.TrainRouteCommand
	var err error
	switch {
	case len(it.chain) > 0:
		r, err = b.compositeRoute(it.chain)
	case len(it.tokens) > 0 && !allFlank(it.tokens):
		r = model.NewTrainRoute(it.from, it.to, b.tokenCommands(it.tokens)...)
	default:
		r = b.derivedRoute(l, it)
	}
	if err != nil {
		return model.TrainRouteCommand{}, err
	}
	r.Address = it.address
	return r, nil
}

func allFlank(tokens []pointToken) bool {
	for _, t := range tokens {
		if !t.flank {
			return false
		}
	}
	return true
}

func (b *builder) tokenCommands(tokens []pointToken) []model.PointCommand {
	res := make([]model.PointCommand, 0, len(tokens))
	for _, t := range tokens {
		pb := model.NewPointCommand(t.number, t.position)
		if p, ok := b.st.Points[t.number]; ok {
			pb.For(p)
		}
		if t.flank {
			pb.FlankProtection()
		}
		res = append(res, pb.Build())
	}
	return res
}

// DerivePoints finds the path between two signals and the point commands it needs.
// The path is nil if either signal is unknown or the destination is unreachable.
func (s *Station) DerivePoints(from, to int) (path []layout.Coord, points []model.PointCommand) {
	a, ok := s.Signal(from)
	if !ok {
		return nil, nil
	}
	z, ok := s.Signal(to)
	if !ok {
		return nil, nil
	}
	path = layout.FindRoutePath(s.Graph, a.Coord, z.Coord, a.DrivesRight)
	if path == nil {
		return nil, nil
	}
	return path, layout.DeriveRoutePoints(s.Graph, path, s.PointDefs, s.Points)
}

// derivedRoute derives the route's points from the track graph and appends any flank tokens.
func (b *builder) derivedRoute(l line, it routeItem) model.TrainRouteCommand {
	_, points := b.st.DerivePoints(it.from, it.to)
	r := model.NewTrainRoute(it.from, it.to, points...)
	for _, c := range b.tokenCommands(it.tokens) {
		if r.ConflictsWith(model.NewTrainRoute(0, 0, c)) {
			b.warn(l, "flank point %s conflicts with the route's path, ignored", c)
			continue
		}
		r.Points = model.AppendPoints(r.Points, c)
	}
	return r
}

// firstRoute returns the first declared route from → to, composite or not.
func (b *builder) firstRoute(from, to int) (model.TrainRouteCommand, bool) {
	for _, r := range b.st.Routes {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return model.TrainRouteCommand{}, false
}

// compositeRoute concatenates the routes between consecutive signals of chain.
func (b *builder) compositeRoute(chain []int) (model.TrainRouteCommand, error) {
	r := model.NewTrainRoute(chain[0], chain[len(chain)-1])
	for i := 1; i < len(chain); i++ {
		sub, ok := b.firstRoute(chain[i-1], chain[i])
		if !ok {
			return model.TrainRouteCommand{}, fmt.Errorf("no route %d-%d declared before this line", chain[i-1], chain[i])
		}
		if r.ConflictsWith(sub) {
			return model.TrainRouteCommand{}, fmt.Errorf("route %s needs points in positions that conflict with the rest of the chain", sub.Name())
		}
		r.Points = model.AppendPoints(r.Points, sub.Points...)
		r.Intermediates = append(r.Intermediates, sub.Intermediates...)
		if i < len(chain)-1 {
			r.Intermediates = append(r.Intermediates, chain[i])
		}
	}
	return r, nil
}
