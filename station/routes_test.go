package station

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rendo/model"
)

// routeStation is a main line (row 2) with a siding (row 3) between points 2 and 1.
//
//	2.0 - 2.1 - ... - 2.5 - ... - 2.10
//	        \         /
//	         3.2 - 3.4
const routeStation = `Loop
[Tracks]
2.0-2.10
3.2-3.4
2.1-3.2
3.4-2.5
[Points]
2.5(<1)-3.4@842
2.1(2>)-3.2@(843)+(-843)-;100
[Signals]
2.10:<21:h
2.0:<31:h
3.3:<25:h
2.0:41>:
2.10:42>:
3.4:43>:
[Routes]
21-31
21-25
25-31
21-31:25@7
35-41:x25+,27+,4+,2+
41-42:x7+
41-43:x2+
21-31:21.25.31
`

func onRoute(cmds []model.PointCommand) []bool {
	res := make([]bool, len(cmds))
	for i, c := range cmds {
		res[i] = c.IsOnRoute()
	}
	return res
}

func TestParseRoutes(t *testing.T) {
	st := ParseString(routeStation)
	p1, p2 := st.Points[1], st.Points[2]
	pc := func(p model.Point, pos model.Position) *model.PointCommandBuilder {
		return model.NewPointCommand(p.Number, pos).For(p)
	}
	plus, minus := model.PositionStraight, model.PositionDiverging

	type setup struct {
		name          string
		from, to      int
		intermediates []int
		points        []model.PointCommand
		onRoute       []bool
	}
	setups := []setup{
		{"derived-main", 21, 31, nil, []model.PointCommand{pc(p1, plus).Build(), pc(p2, plus).Build()}, []bool{true, true}},
		{"derived-siding", 21, 25, nil, []model.PointCommand{pc(p1, minus).Build()}, []bool{true}},
		{"derived-siding-out", 25, 31, nil, []model.PointCommand{pc(p2, minus).Build()}, []bool{true}},
		{"composite", 21, 31, []int{25}, []model.PointCommand{pc(p1, minus).Build(), pc(p2, minus).Build()}, []bool{true, true}},
		{"literal", 35, 41, nil, []model.PointCommand{
			model.NewPointCommand(25, plus).Build(),
			model.NewPointCommand(27, plus).Build(),
			model.NewPointCommand(4, plus).Build(),
			pc(p2, plus).Build(),
		}, []bool{false, true, true, true}},
		{"derived-with-flank", 41, 42, nil, []model.PointCommand{pc(p2, plus).Build(), pc(p1, plus).Build(), model.NewPointCommand(7, plus).Build()}, []bool{true, true, false}},
		{"conflicting-flank-dropped", 41, 43, nil, []model.PointCommand{pc(p2, minus).Build()}, []bool{true}},
	}
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			r, ok := st.Route(s.from, s.to, s.intermediates...)
			if !ok {
				t.Fatalf("route missing: %v", st.Routes)
			}
			if diff := cmp.Diff(s.points, r.Points); diff != "" {
				t.Fatalf("points: %s", diff)
			}
			if diff := cmp.Diff(s.onRoute, onRoute(r.Points)); diff != "" {
				t.Fatalf("on route: %s", diff)
			}
		})
	}

	if len(st.Routes) != len(setups) {
		t.Fatalf("expected %d routes, got %v", len(setups), st.Routes)
	}
	composite, _ := st.Route(21, 31, 25)
	if composite.Name() != "21.25.31" || composite.Address != 7 {
		t.Fatalf("composite: %s @%d", composite.Name(), composite.Address)
	}
	if diff := cmp.Diff([]int{943}, pc(p2, plus).Build().LockAddresses()); diff != "" {
		t.Fatalf("lock addresses: %s", diff)
	}
	if diff := cmp.Diff([]int{-943}, pc(p2, minus).Build().LockAddresses()); diff != "" {
		t.Fatalf("negative lock addresses: %s", diff)
	}

	var reasons []string
	for _, w := range st.Warnings {
		reasons = append(reasons, w.Reason)
	}
	if len(reasons) != 2 || !strings.Contains(reasons[0], "conflicts") || !strings.Contains(reasons[1], "duplicate") {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParseRouteMissingBase(t *testing.T) {
	st := ParseString(routeStation + "21-31:21.99.31\n")
	if _, ok := st.Route(21, 31, 99); ok {
		t.Fatalf("composite without base routes was built")
	}
	last := st.Warnings[len(st.Warnings)-1]
	if last.Section != SectionRoutes || !strings.Contains(last.Reason, "no route 21-99") {
		t.Fatalf("warning: %s", last)
	}
}

func TestDerivePoints(t *testing.T) {
	st := ParseString(routeStation)
	path, points := st.DerivePoints(21, 25)
	if len(path) != 8 || len(points) != 1 {
		t.Fatalf("path %v points %v", path, points)
	}
	if path, _ := st.DerivePoints(21, 99); path != nil {
		t.Fatalf("path to a missing signal: %v", path)
	}
	// 31 drives left from the end of the line
	if path, _ := st.DerivePoints(31, 42); path != nil {
		t.Fatalf("path against the direction of travel: %v", path)
	}
}

func TestParseRoutesDeclaredBeforeTopology(t *testing.T) {
	a := Source{Name: "routes.txt", Text: "[Routes]\n21-31\n"}
	idx := strings.Index(routeStation, "[Routes]")
	b := Source{Name: "yard.txt", Text: routeStation[:idx]}
	st := Parse(a, b)
	if st.Name != "Loop" {
		t.Fatalf("name: %q", st.Name)
	}
	r, ok := st.Route(21, 31)
	if !ok || len(r.Points) != 2 {
		t.Fatalf("route 21-31: %v", r)
	}
}
