package station

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rendo/layout"
	"nyiyui.ca/hato/rendo/model"
)

const testStation = `Testby
' main line with a siding
[Tracks]
2.0-2.10
3.0-3.5
2.5-3.4

[Points]
2.5(<1)-3.4  @842

[Signals]
2.10:<21:h
2.0:<31:h
3.0:<33:h

[Settings]
LockReleaseDelay:2

[Turntable]
Tracks:1-3
Offset:196

[Translations]
Spår;Track;Gleis

[Routes]
21-31
21-33:1-
`

func TestParseExample(t *testing.T) {
	st := ParseString(testStation)
	if st.Name != "Testby" {
		t.Fatalf("name: %q", st.Name)
	}
	expectedDefs := []layout.PointDefinition{
		{Label: "1", SwitchPoint: layout.Coord{Row: 2, Col: 5}, ExplicitEnd: layout.Coord{Row: 3, Col: 4}, Direction: layout.Backward},
	}
	if diff := cmp.Diff(expectedDefs, st.PointDefs); diff != "" {
		t.Fatalf("point defs: %s", diff)
	}
	expectedPoints := map[int]model.Point{
		1: {Number: 1, StraightAddresses: []int{842}, DivergingAddresses: []int{842}},
	}
	if diff := cmp.Diff(expectedPoints, st.Points); diff != "" {
		t.Fatalf("points: %s", diff)
	}
	if diff := cmp.Diff(map[int]int{1: 197, 2: 198, 3: 199}, st.TurntableTracks); diff != "" {
		t.Fatalf("turntable: %s", diff)
	}
	if st.LockReleaseDelay != 2*time.Second {
		t.Fatalf("lock release delay: %s", st.LockReleaseDelay)
	}
	if diff := cmp.Diff([]string{"Track", "Gleis"}, st.Translate("Spår")); diff != "" {
		t.Fatalf("translations: %s", diff)
	}

	r, ok := st.Route(21, 31)
	if !ok {
		t.Fatalf("route 21-31 missing: %v", st.Routes)
	}
	if len(r.Points) != 1 || r.Points[0].Number() != 1 || r.Points[0].Position() != model.PositionStraight {
		t.Fatalf("route 21-31 points: %v", r.Points)
	}
	if diff := cmp.Diff([]int{842}, r.Points[0].Addresses()); diff != "" {
		t.Fatalf("route 21-31 addresses: %s", diff)
	}

	// 2.5-3.4 runs towards a lower column
	var topology int
	for _, w := range st.Warnings {
		if strings.Contains(w.Reason, "lower column") {
			topology++
		}
	}
	if topology != 1 || len(st.Warnings) != 1 {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParseTracks(t *testing.T) {
	st := ParseString("[Tracks]\n1.0-1.5!-2.6\n")
	for c := 0; c <= 5; c++ {
		if _, ok := st.Graph.Node(layout.Coord{Row: 1, Col: c}); !ok {
			t.Fatalf("node 1.%d missing", c)
		}
	}
	for c := 0; c < 5; c++ {
		if _, ok := st.Graph.Link(layout.Coord{Row: 1, Col: c}, layout.Coord{Row: 1, Col: c + 1}); !ok {
			t.Fatalf("link 1.%d-1.%d missing", c, c+1)
		}
	}
	if _, ok := st.Graph.Link(layout.Coord{Row: 1, Col: 5}, layout.Coord{Row: 2, Col: 6}); !ok {
		t.Fatalf("cross-row link missing")
	}
	if st.Graph.NodeCount() != 7 || st.Graph.LinkCount() != 6 {
		t.Fatalf("nodes %d links %d", st.Graph.NodeCount(), st.Graph.LinkCount())
	}
	n, _ := st.Graph.Node(layout.Coord{Row: 1, Col: 5})
	if !n.Necessary {
		t.Fatalf("1.5 must be necessary")
	}
	if len(st.Warnings) != 0 {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParseTracksSpanLimit(t *testing.T) {
	st := ParseString("[Tracks]\n2.0-2.2000000000\n3.0-3.2\n")
	if len(st.Warnings) != 1 || st.Warnings[0].Line != 2 {
		t.Fatalf("warnings: %v", st.Warnings)
	}
	if st.Graph.LinkCount() != 2 {
		t.Fatalf("links: %d", st.Graph.LinkCount())
	}
	if _, ok := st.Graph.Node(layout.Coord{Row: 2, Col: 1}); ok {
		t.Fatalf("oversized link was expanded")
	}
}

func TestParseDefaultsToTracks(t *testing.T) {
	st := ParseString("2.0-2.3\n[Bogus]\n3.0-3.1\n")
	if st.Name != "" {
		t.Fatalf("name: %q", st.Name)
	}
	if st.Graph.LinkCount() != 4 {
		t.Fatalf("links: %d", st.Graph.LinkCount())
	}
	if len(st.Warnings) != 1 || st.Warnings[0].Line != 2 {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParsePoints(t *testing.T) {
	src := `[Tracks]
1.0-1.10
2.0-2.10
1.3-2.4
2.6-1.7
[Settings]
LockOffset:1000
[Points]
1.3(5>)-2.4(<6)@(809a,810)+(-811)-
2.6(7>)-1.7+@12,13;0
1.7(<9)-2.6
`
	st := ParseString(src)
	expectedDefs := []layout.PointDefinition{
		{Label: "5", SwitchPoint: layout.Coord{Row: 1, Col: 3}, ExplicitEnd: layout.Coord{Row: 2, Col: 4}, Direction: layout.Forward},
		{Label: "6", SwitchPoint: layout.Coord{Row: 2, Col: 4}, ExplicitEnd: layout.Coord{Row: 1, Col: 3}, Direction: layout.Backward},
		{Label: "7", SwitchPoint: layout.Coord{Row: 2, Col: 6}, ExplicitEnd: layout.Coord{Row: 1, Col: 7}, Direction: layout.Forward, ExplicitEndIsStraight: true},
		{Label: "9", SwitchPoint: layout.Coord{Row: 1, Col: 7}, ExplicitEnd: layout.Coord{Row: 2, Col: 6}, Direction: layout.Backward},
	}
	if diff := cmp.Diff(expectedDefs, st.PointDefs); diff != "" {
		t.Fatalf("point defs: %s", diff)
	}
	crossover := func(n int) model.Point {
		return model.Point{
			Number:             n,
			StraightAddresses:  []int{809, 810},
			DivergingAddresses: []int{-811},
			LockAddressOffset:  1000,
			SubPoints:          map[int]byte{809: 'a'},
		}
	}
	expectedPoints := map[int]model.Point{
		5: crossover(5),
		6: crossover(6),
		7: {Number: 7, StraightAddresses: []int{12, 13}, DivergingAddresses: []int{12, 13}},
	}
	if diff := cmp.Diff(expectedPoints, st.Points); diff != "" {
		t.Fatalf("points: %s", diff)
	}
	if sub, ok := st.Points[5].SubPoint(-809); !ok || sub != 'a' {
		t.Fatalf("sub-point: %c %t", sub, ok)
	}
	if diff := cmp.Diff([]int{5, 6, 7}, st.PointNumbers()); diff != "" {
		t.Fatalf("point numbers: %s", diff)
	}
}

func TestParseSignals(t *testing.T) {
	src := `[Tracks]
2.0-2.10
[Signals]
2.10:<21:h
2.0:31[Up]>:u@120;121
2.5:S1:
2.4:22:x
`
	st := ParseString(src)
	expected := []layout.SignalDefinition{
		{Name: "21", Coord: layout.Coord{Row: 2, Col: 10}, DrivesRight: false, Type: layout.SignalMainDwarf},
		{Name: "31", Coord: layout.Coord{Row: 2, Col: 0}, DrivesRight: true, Type: layout.SignalOutboundMain, Label: "Up", Address: 120, FeedbackAddress: 121},
		{Name: "S1", Coord: layout.Coord{Row: 2, Col: 5}, DrivesRight: true},
		{Name: "22", Coord: layout.Coord{Row: 2, Col: 4}, DrivesRight: true, Type: layout.SignalHidden},
	}
	if diff := cmp.Diff(expected, st.Signals); diff != "" {
		t.Fatalf("signals: %s", diff)
	}
	if _, ok := st.Signal(21); !ok {
		t.Fatalf("signal 21 missing")
	}
	if len(st.Warnings) != 0 {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParseAnnotations(t *testing.T) {
	src := `[Tracks]
2.0-2.4
[Labels]
2.1:Platform 1
[Gaps]
2.1-2.2
2.3
3.0-3.1
`
	st := ParseString(src)
	if diff := cmp.Diff([]layout.LabelDefinition{{Coord: layout.Coord{Row: 2, Col: 1}, Text: "Platform 1"}}, st.Labels); diff != "" {
		t.Fatalf("labels: %s", diff)
	}
	if len(st.Gaps) != 3 {
		t.Fatalf("gaps: %v", st.Gaps)
	}
	l, _ := st.Graph.Link(layout.Coord{Row: 2, Col: 2}, layout.Coord{Row: 2, Col: 1})
	if !l.HasGap {
		t.Fatalf("link 2.1-2.2 has no gap")
	}
	if len(st.Warnings) != 1 || st.Warnings[0].Section != SectionGaps {
		t.Fatalf("warnings: %v", st.Warnings)
	}
}

func TestParseMalformedLines(t *testing.T) {
	type setup struct {
		section string
		line    string
	}
	setups := []setup{
		{"Tracks", "2.0"},
		{"Tracks", "2.x-2.3"},
		{"Points", "2.5(1)-3.4"},
		{"Points", "2.5(<1>)-3.4"},
		{"Points", "2.5(<1)-3.4@(1)+"},
		{"Points", "2.5(<1)-3.4@"},
		{"Signals", "2.0:<31>:"},
		{"Signals", "2.0:31:q"},
		{"Signals", "2.0"},
		{"Routes", "21"},
		{"Routes", "21-21"},
		{"Routes", "21-31:x4"},
		{"Routes", "21-31:21.31"},
		{"Routes", "21-31:21.25.31"},
		{"Settings", "LockOffset:abc"},
		{"Settings", "Colour:red"},
		{"Turntable", "Tracks:3-1"},
		{"Translations", "nothing"},
	}
	for i, s := range setups {
		t.Run(fmt.Sprintf("%d-%s", i, s.section), func(t *testing.T) {
			src := fmt.Sprintf("[Tracks]\n2.0-2.10\n3.0-3.5\n[%s]\n%s\n[Tracks]\n4.0-4.2\n", s.section, s.line)
			st := ParseString(src)
			if len(st.Warnings) != 1 {
				t.Fatalf("expected 1 warning, got %v", st.Warnings)
			}
			if w := st.Warnings[0]; w.Line != 5 {
				t.Fatalf("warning on line %d: %s", w.Line, w)
			}
			if _, ok := st.Graph.Link(layout.Coord{Row: 4, Col: 1}, layout.Coord{Row: 4, Col: 2}); !ok {
				t.Fatalf("lines after the malformed one were not parsed")
			}
		})
	}
}

func TestParseDelay(t *testing.T) {
	type setup struct {
		src string
		d   time.Duration
		ok  bool
	}
	setups := []setup{
		{"3", 3 * time.Second, true},
		{"1500ms", 1500 * time.Millisecond, true},
		{"-1", 0, false},
		{"soon", 0, false},
	}
	for _, s := range setups {
		t.Run(s.src, func(t *testing.T) {
			d, err := ParseDelay(s.src)
			if (err == nil) != s.ok || d != s.d {
				t.Fatalf("got %s %v", d, err)
			}
		})
	}
}
