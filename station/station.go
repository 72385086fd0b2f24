// Package station parses station descriptions into a track graph, hardware points, signals and
// train routes.
package station

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rendo/layout"
	"nyiyui.ca/hato/rendo/model"
)

// Source is one station description text.
type Source struct {
	// Name identifies the source in warnings, usually a file path.
	Name string
	Text string
}

// Warning is a line that could not be used, or a topology oddity that was accepted.
type Warning struct {
	Source  string
	Line    int
	Section Section
	Text    string
	Reason  string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s:%d [%s] %q: %s", w.Source, w.Line, w.Section, w.Text, w.Reason)
}

// Station is everything a station description defines.
type Station struct {
	Name  string
	Graph *layout.Graph

	PointDefs []layout.PointDefinition
	Signals   []layout.SignalDefinition
	Labels    []layout.LabelDefinition
	Gaps      []layout.GapDefinition

	// Points are the addressable points by number.
	Points map[int]model.Point
	// TurntableTracks maps a turntable track number to its hardware address.
	TurntableTracks map[int]int
	// Routes are in the order they were declared.
	Routes []model.TrainRouteCommand

	LockOffset       int
	LockReleaseDelay time.Duration
	Translations     map[string][]string

	Warnings []Warning
}

func newStation() *Station {
	return &Station{
		Graph:           layout.NewGraph(),
		Points:          map[int]model.Point{},
		TurntableTracks: map[int]int{},
		Translations:    map[string][]string{},
	}
}

// Signal returns the routable signal numbered n.
func (s *Station) Signal(n int) (layout.SignalDefinition, bool) {
	for _, sig := range s.Signals {
		if m, ok := sig.Number(); ok && m == n {
			return sig, true
		}
	}
	return layout.SignalDefinition{}, false
}

// Route returns the route from → to passing the given intermediate signals.
func (s *Station) Route(from, to int, intermediates ...int) (model.TrainRouteCommand, bool) {
	for _, r := range s.Routes {
		if r.From == from && r.To == to && slices.Equal(r.Intermediates, intermediates) {
			return r, true
		}
	}
	return model.TrainRouteCommand{}, false
}

// RoutesTo returns all routes ending at signal to.
func (s *Station) RoutesTo(to int) []model.TrainRouteCommand {
	var res []model.TrainRouteCommand
	for _, r := range s.Routes {
		if r.To == to {
			res = append(res, r)
		}
	}
	return res
}

// PointNumbers returns the addressable point numbers in ascending order.
func (s *Station) PointNumbers() []int {
	keys := maps.Keys(s.Points)
	slices.Sort(keys)
	return keys
}

// TurntableTrackNumbers returns the turntable track numbers in ascending order.
func (s *Station) TurntableTrackNumbers() []int {
	keys := maps.Keys(s.TurntableTracks)
	slices.Sort(keys)
	return keys
}

// Translate returns the translations of key, or key itself if there are none.
func (s *Station) Translate(key string) []string {
	if t, ok := s.Translations[key]; ok {
		return t
	}
	return []string{key}
}

// LoadFiles reads and parses the files as one station description.
func LoadFiles(paths ...string) (*Station, error) {
	srcs := make([]Source, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("load station: %w", err)
		}
		srcs = append(srcs, Source{Name: p, Text: string(b)})
	}
	return Parse(srcs...), nil
}

// ParseString parses a single unnamed source.
func ParseString(text string) *Station {
	return Parse(Source{Name: "<string>", Text: text})
}
