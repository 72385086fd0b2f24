package layout

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// row adds unit-step links along row r from column c1 to c2.
func row(g *Graph, r, c1, c2 int) {
	for c := c1; c < c2; c++ {
		g.TryAddLink(Coord{r, c}, Coord{r, c + 1})
	}
}

func TestTryAddLinkIdempotent(t *testing.T) {
	g := NewGraph()
	a, b := Coord{1, 1}, Coord{1, 2}
	if !g.TryAddLink(a, b) {
		t.Fatalf("first TryAddLink failed")
	}
	if g.TryAddLink(a, b) {
		t.Fatalf("second TryAddLink succeeded")
	}
	if g.TryAddLink(b, a) {
		t.Fatalf("swapped TryAddLink succeeded")
	}
	if g.TryAddLink(a, a) {
		t.Fatalf("self link succeeded")
	}
	if got := g.LinkCount(); got != 1 {
		t.Fatalf("expected 1 link, got %d", got)
	}
	l, ok := g.Link(b, a)
	if !ok || l.From.Coord != a || l.To.Coord != b {
		t.Fatalf("Link(b, a): %v %t", l, ok)
	}
}

func TestNodeLookup(t *testing.T) {
	g := NewGraph()
	if _, ok := g.Node(Coord{0, 0}); ok {
		t.Fatalf("empty graph has a node")
	}
	g.TryAddLink(Coord{2, 4}, Coord{2, 5})
	g.TryAddLink(Coord{2, 5}, Coord{2, 6})
	g.TryAddLink(Coord{2, 5}, Coord{3, 6})
	n, ok := g.Node(Coord{2, 5})
	if !ok {
		t.Fatalf("node missing")
	}
	if n.Degree() != 3 {
		t.Fatalf("degree: expected 3, got %d", n.Degree())
	}
	if diff := cmp.Diff([]Coord{{2, 6}, {3, 6}}, g.DirectedAdjacentCoords(Coord{2, 5}, true)); diff != "" {
		t.Fatalf("forward adjacency: %s", diff)
	}
	if diff := cmp.Diff([]Coord{{2, 4}}, g.DirectedAdjacentCoords(Coord{2, 5}, false)); diff != "" {
		t.Fatalf("backward adjacency: %s", diff)
	}
	if diff := cmp.Diff([]Coord{{2, 6}, {3, 6}, {2, 4}}, g.AdjacentCoords(Coord{2, 5})); diff != "" {
		t.Fatalf("adjacency: %s", diff)
	}
}

func TestParseCoord(t *testing.T) {
	type setup struct {
		src string
		c   Coord
		ok  bool
	}
	setups := []setup{
		{"2.5", Coord{2, 5}, true},
		{" 10.0 ", Coord{10, 0}, true},
		{"2", Coord{}, false},
		{"a.1", Coord{}, false},
		{"1.-1", Coord{}, false},
	}
	for i, s := range setups {
		t.Run(fmt.Sprintf("%d-%s", i, s.src), func(t *testing.T) {
			c, err := ParseCoord(s.src)
			if (err == nil) != s.ok {
				t.Fatalf("err: %v", err)
			}
			if c != s.c {
				t.Fatalf("expected %s, got %s", s.c, c)
			}
		})
	}
}
