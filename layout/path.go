package layout

// FindRoutePath returns the shortest path (by link count) from start to end, following
// only outgoing links if forward, else only incoming ones.
// It returns nil if end isn't reachable. Ties go to whichever path the search discovers first.
func FindRoutePath(g *Graph, start, end Coord, forward bool) []Coord {
	if _, ok := g.Node(start); !ok {
		return nil
	}
	if _, ok := g.Node(end); !ok {
		return nil
	}
	if start == end {
		return []Coord{start}
	}
	using := map[Coord]Coord{}
	visited := map[Coord]bool{start: true}
	queue := []Coord{start}
	found := false
	for len(queue) > 0 && !found {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.DirectedAdjacentCoords(current, forward) {
			if visited[next] {
				continue
			}
			visited[next] = true
			using[next] = current
			if next == end {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !found {
		return nil
	}
	path := []Coord{end}
	for c := end; c != start; {
		c = using[c]
		path = append(path, c)
	}
	reverse(path)
	return path
}

// PathLinks returns the links between consecutive coordinates of path.
// ok is false if some consecutive pair isn't linked.
func PathLinks(g *Graph, path []Coord) (links []*Link, ok bool) {
	if len(path) < 2 {
		return nil, true
	}
	links = make([]*Link, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		l, ok := g.Link(path[i-1], path[i])
		if !ok {
			return links, false
		}
		links = append(links, l)
	}
	return links, true
}

func reverse[S ~[]E, E any](s S) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
