// Package validate cross-checks the routes of a station against its signals, points and tracks.
package validate

import (
	"fmt"

	"nyiyui.ca/hato/rendo/model"
	"nyiyui.ca/hato/rendo/station"
)

type Kind int

const (
	MissingSignal Kind = iota
	MissingPoint
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case MissingSignal:
		return "missing-signal"
	case MissingPoint:
		return "missing-point"
	case Unreachable:
		return "unreachable"
	default:
		panic(fmt.Sprintf("invalid Kind %d", int(k)))
	}
}

// Issue is one reason a route is invalid.
type Issue struct {
	Route  model.TrainRouteCommand
	Kind   Kind
	Detail string
}

func (i Issue) Error() string {
	return fmt.Sprintf("route %s: %s: %s", i.Route.Name(), i.Kind, i.Detail)
}

// Result partitions a station's routes.
type Result struct {
	Valid   []model.TrainRouteCommand
	Invalid []model.TrainRouteCommand
	Issues  []Issue
}

// IsValid reports whether r (by signals) is among the valid routes.
func (r Result) IsValid(route model.TrainRouteCommand) bool {
	for _, v := range r.Valid {
		if v.SameRoute(route) {
			return true
		}
	}
	return false
}

// IssuesFor returns the issues of route.
func (r Result) IssuesFor(route model.TrainRouteCommand) []Issue {
	var res []Issue
	for _, i := range r.Issues {
		if i.Route.SameRoute(route) {
			res = append(res, i)
		}
	}
	return res
}

// Station checks every route of st.
//
// Point positions are not compared with the derived path: a hand-written route may use either
// arm. Only reachability is checked, and only for routes that have on-route points (or none).
func Station(st *station.Station) Result {
	var res Result
	for _, r := range st.Routes {
		issues := Route(st, r)
		if len(issues) == 0 {
			res.Valid = append(res.Valid, r)
			continue
		}
		res.Invalid = append(res.Invalid, r)
		res.Issues = append(res.Issues, issues...)
	}
	return res
}

// Route checks one route against st.
func Route(st *station.Station, r model.TrainRouteCommand) []Issue {
	var issues []Issue
	signalsOK := true
	for _, n := range r.Signals() {
		if _, ok := st.Signal(n); !ok {
			signalsOK = false
			issues = append(issues, Issue{r, MissingSignal, fmt.Sprintf("signal %d", n)})
		}
	}
	for _, c := range r.Points {
		if _, ok := st.Points[c.Number()]; !ok {
			issues = append(issues, Issue{r, MissingPoint, fmt.Sprintf("point %d", c.Number())})
		}
	}
	if !signalsOK {
		return issues
	}
	if len(r.Points) > 0 && len(r.OnRoutePoints()) == 0 {
		return issues
	}
	sigs := r.Signals()
	for i := 1; i < len(sigs); i++ {
		if path, _ := st.DerivePoints(sigs[i-1], sigs[i]); path == nil {
			issues = append(issues, Issue{r, Unreachable, fmt.Sprintf("no path from signal %d to %d", sigs[i-1], sigs[i])})
		}
	}
	return issues
}
