package layout

import (
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rendo/model"
)

// DeriveRoutePoints returns one on-route PointCommand per distinct point number whose
// switch point lies on path, in path order. Hardware addresses are taken from points
// when the number is known there.
func DeriveRoutePoints(g *Graph, path []Coord, defs []PointDefinition, points map[int]model.Point) []model.PointCommand {
	var res []model.PointCommand
	seen := map[int]bool{}
	for i, c := range path {
		for _, d := range defs {
			if d.SwitchPoint != c {
				continue
			}
			n, ok := d.Number()
			if !ok || seen[n] {
				continue
			}
			pos := armUsed(g, path, i, d)
			if pos == model.PositionUndefined {
				continue
			}
			seen[n] = true
			b := model.NewPointCommand(n, pos)
			if p, ok := points[n]; ok {
				b.For(p)
			}
			res = append(res, b.Build())
		}
	}
	return res
}

// armUsed decides which arm of d the path uses at path[i] (d's switch point).
// Arm membership decides first; if both arms are on the path, the links actually
// taken at path[i] decide.
func armUsed(g *Graph, path []Coord, i int, d PointDefinition) model.Position {
	s := DeduceStraightArm(g, d)
	v := DeduceDivergingEnd(g, d)
	hasS := slices.Contains(path, s)
	hasV := slices.Contains(path, v)
	switch {
	case hasS && !hasV:
		return model.PositionStraight
	case hasV && !hasS:
		return model.PositionDiverging
	case !hasS && !hasV:
		return model.PositionUndefined
	}
	linkS := linkedAt(g, path, i, s)
	linkV := linkedAt(g, path, i, v)
	switch {
	case linkS && !linkV:
		return model.PositionStraight
	case linkV:
		return model.PositionDiverging
	}
	return model.PositionUndefined
}

// linkedAt reports whether the path steps between path[i] and arm over an existing link.
func linkedAt(g *Graph, path []Coord, i int, arm Coord) bool {
	for _, j := range []int{i - 1, i + 1} {
		if j < 0 || j >= len(path) || path[j] != arm {
			continue
		}
		if _, ok := g.Link(path[i], arm); ok {
			return true
		}
	}
	return false
}
