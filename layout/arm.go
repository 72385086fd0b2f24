package layout

// DeduceStraightArm returns the coordinate of d's straight arm.
func DeduceStraightArm(g *Graph, d PointDefinition) Coord {
	if d.ExplicitEndIsStraight {
		return d.ExplicitEnd
	}
	return deduceArm(g, d, true)
}

// DeduceDivergingEnd returns the coordinate of d's diverging arm.
func DeduceDivergingEnd(g *Graph, d PointDefinition) Coord {
	if !d.ExplicitEndIsStraight {
		return d.ExplicitEnd
	}
	return deduceArm(g, d, false)
}

// deduceArm finds the arm of d that isn't ExplicitEnd among the switch point's neighbours.
// Neighbours on the side the point diverges to are preferred when there are any.
func deduceArm(g *Graph, d PointDefinition, straight bool) Coord {
	sp := d.SwitchPoint
	forward := d.Direction == Forward
	var all, side []Coord
	for _, c := range g.AdjacentCoords(sp) {
		if c == d.ExplicitEnd {
			continue
		}
		all = append(all, c)
		if (forward && c.Col > sp.Col) || (!forward && c.Col < sp.Col) {
			side = append(side, c)
		}
	}
	cands := all
	if len(side) > 0 {
		cands = side
	}
	switch len(cands) {
	case 0:
		return sp.Step(forward)
	case 1:
		return cands[0]
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if armBetter(sp, c, best, forward, straight) {
			best = c
		}
	}
	return best
}

// armBetter reports whether a ranks above b: a straight arm continues on the switch point's
// row (a diverging arm leaves it), then the column furthest in the point's direction wins.
func armBetter(sp, a, b Coord, forward, straight bool) bool {
	aRow := a.Row == sp.Row
	bRow := b.Row == sp.Row
	if aRow != bRow {
		return aRow == straight
	}
	if forward {
		return a.Col > b.Col
	}
	return a.Col < b.Col
}
