package layout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Coord is a position in the station's layout grid.
type Coord struct {
	Row int
	Col int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d.%d", c.Row, c.Col)
}

// Less orders by row, then column.
func (c Coord) Less(o Coord) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// Step returns the coordinate one column further in direction forward (or backward).
func (c Coord) Step(forward bool) Coord {
	if forward {
		return Coord{c.Row, c.Col + 1}
	}
	return Coord{c.Row, c.Col - 1}
}

var ErrCoord = errors.New("invalid coordinate")

// ParseCoord parses "ROW.COL".
func ParseCoord(s string) (Coord, error) {
	row, col, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q: missing '.'", ErrCoord, s)
	}
	r, err := strconv.Atoi(row)
	if err != nil || r < 0 {
		return Coord{}, fmt.Errorf("%w: %q: row", ErrCoord, s)
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 0 {
		return Coord{}, fmt.Errorf("%w: %q: column", ErrCoord, s)
	}
	return Coord{r, c}, nil
}

// Link is a directed piece of track between two neighbouring nodes.
// Its direction is fixed at creation.
type Link struct {
	From *Node
	To   *Node
	// HasGap marks an electrical/occupancy divider on this link.
	HasGap bool
}

func (l *Link) String() string {
	if l.HasGap {
		return fmt.Sprintf("%s|%s", l.From.Coord, l.To.Coord)
	}
	return fmt.Sprintf("%s-%s", l.From.Coord, l.To.Coord)
}

// Other returns the end of l that isn't c.
func (l *Link) Other(c Coord) Coord {
	if l.From.Coord == c {
		return l.To.Coord
	}
	return l.From.Coord
}

// Node is a grid position with track.
type Node struct {
	Coord Coord
	// Outgoing links go towards higher columns, Incoming come from lower ones.
	Outgoing []*Link
	Incoming []*Link
	// Necessary nodes must survive any topology simplification.
	Necessary bool
}

func (n *Node) Degree() int {
	return len(n.Outgoing) + len(n.Incoming)
}

// Graph is the track topology of a station.
// At most one link exists between any unordered pair of coordinates.
type Graph struct {
	nodes map[Coord]*Node
	links []*Link
}

func NewGraph() *Graph {
	return &Graph{nodes: map[Coord]*Node{}}
}

func (g *Graph) GetOrCreateNode(c Coord) *Node {
	n, ok := g.nodes[c]
	if !ok {
		n = &Node{Coord: c}
		g.nodes[c] = n
	}
	return n
}

// Node looks up a node without creating it.
func (g *Graph) Node(c Coord) (*Node, bool) {
	n, ok := g.nodes[c]
	return n, ok
}

// TryAddLink adds a link from → to, creating both nodes if needed.
// It returns false if from == to or a link between the pair already exists (in either direction).
func (g *Graph) TryAddLink(from, to Coord) bool {
	if from == to {
		return false
	}
	if _, ok := g.Link(from, to); ok {
		return false
	}
	a := g.GetOrCreateNode(from)
	b := g.GetOrCreateNode(to)
	l := &Link{From: a, To: b}
	a.Outgoing = append(a.Outgoing, l)
	b.Incoming = append(b.Incoming, l)
	g.links = append(g.links, l)
	return true
}

// Link returns the link between a and b regardless of its direction.
func (g *Graph) Link(a, b Coord) (*Link, bool) {
	n, ok := g.nodes[a]
	if !ok {
		return nil, false
	}
	for _, l := range n.Outgoing {
		if l.To.Coord == b {
			return l, true
		}
	}
	for _, l := range n.Incoming {
		if l.From.Coord == b {
			return l, true
		}
	}
	return nil, false
}

// AdjacentCoords returns all neighbours of c, outgoing first, in link creation order.
func (g *Graph) AdjacentCoords(c Coord) []Coord {
	n, ok := g.nodes[c]
	if !ok {
		return nil
	}
	res := make([]Coord, 0, n.Degree())
	for _, l := range n.Outgoing {
		res = append(res, l.To.Coord)
	}
	for _, l := range n.Incoming {
		res = append(res, l.From.Coord)
	}
	return res
}

// DirectedAdjacentCoords returns the outgoing neighbours of c if forward, else the incoming ones.
func (g *Graph) DirectedAdjacentCoords(c Coord, forward bool) []Coord {
	n, ok := g.nodes[c]
	if !ok {
		return nil
	}
	var res []Coord
	if forward {
		for _, l := range n.Outgoing {
			res = append(res, l.To.Coord)
		}
	} else {
		for _, l := range n.Incoming {
			res = append(res, l.From.Coord)
		}
	}
	return res
}

// Nodes returns all nodes ordered by coordinate.
func (g *Graph) Nodes() []*Node {
	res := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Coord.Less(res[j].Coord) })
	return res
}

// Links returns all links in creation order.
func (g *Graph) Links() []*Link {
	res := make([]*Link, len(g.links))
	copy(res, g.links)
	return res
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) LinkCount() int { return len(g.links) }
