package model

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// RouteState is what a train route command asks for.
type RouteState int

const (
	RouteUnset RouteState = iota
	RouteSetMain
	RouteSetShunting
	RouteClear
	RouteCancel
)

func (s RouteState) String() string {
	switch s {
	case RouteUnset:
		return "unset"
	case RouteSetMain:
		return "set-main"
	case RouteSetShunting:
		return "set-shunting"
	case RouteClear:
		return "clear"
	case RouteCancel:
		return "cancel"
	default:
		panic(fmt.Sprintf("invalid RouteState %d", int(s)))
	}
}

// TrainRouteCommand is a route between two signals and the points it needs.
// Signal numbers <= 0 mean "not given".
type TrainRouteCommand struct {
	From  int
	To    int
	State RouteState
	// Points is an ordered set: no two elements are Equal.
	Points []PointCommand
	// Intermediates are the signals a composite route passes through.
	Intermediates []int
	// Address is the hardware address of a route-setting panel output, 0 if none.
	Address int
}

// NewTrainRoute returns a route in RouteUnset with duplicate point commands removed.
func NewTrainRoute(from, to int, points ...PointCommand) TrainRouteCommand {
	return TrainRouteCommand{
		From:   from,
		To:     to,
		Points: AppendPoints(nil, points...),
	}
}

// AppendPoints appends each command to dst unless an Equal command is already present.
func AppendPoints(dst []PointCommand, cmds ...PointCommand) []PointCommand {
	for _, c := range cmds {
		if slices.IndexFunc(dst, c.Equal) != -1 {
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// WithState returns a copy of r in state s.
func (r TrainRouteCommand) WithState(s RouteState) TrainRouteCommand {
	r.State = s
	r.Points = slices.Clone(r.Points)
	r.Intermediates = slices.Clone(r.Intermediates)
	return r
}

// IsSet reports whether r asks for the route to be set (main or shunting).
func (r TrainRouteCommand) IsSet() bool {
	return r.State == RouteSetMain || r.State == RouteSetShunting
}

// IsTrainRouteTeardownCommand reports whether r asks for an active route to be torn down.
func (r TrainRouteCommand) IsTrainRouteTeardownCommand() bool {
	return r.State == RouteClear || r.State == RouteCancel
}

// IsClear reports whether r is a teardown with delayed release.
func (r TrainRouteCommand) IsClear() bool { return r.State == RouteClear }

// IsCancel reports whether r is a teardown with immediate release.
func (r TrainRouteCommand) IsCancel() bool { return r.State == RouteCancel }

// IsUndefined is true when the signals are missing, or a set command carries no usable points.
// Teardown commands only need the destination signal.
func (r TrainRouteCommand) IsUndefined() bool {
	if r.IsTrainRouteTeardownCommand() {
		return r.To <= 0
	}
	if r.From <= 0 || r.To <= 0 {
		return true
	}
	if r.IsSet() {
		for _, p := range r.Points {
			if !p.IsUndefined() {
				return false
			}
		}
		return true
	}
	return false
}

// ConflictsWith is true if r and o need any point in different positions.
func (r TrainRouteCommand) ConflictsWith(o TrainRouteCommand) bool {
	for _, a := range r.Points {
		for _, b := range o.Points {
			if a.ConflictsWith(b) {
				return true
			}
		}
	}
	return false
}

// UsesPoint reports whether any of r's point commands is for point number.
func (r TrainRouteCommand) UsesPoint(number int) bool {
	return slices.IndexFunc(r.Points, func(c PointCommand) bool { return c.Number() == number }) != -1
}

// OnRoutePoints returns the point commands on the route's path (without flank protection).
func (r TrainRouteCommand) OnRoutePoints() []PointCommand {
	res := make([]PointCommand, 0, len(r.Points))
	for _, c := range r.Points {
		if c.IsOnRoute() {
			res = append(res, c)
		}
	}
	return res
}

// Signals returns the from signal, intermediates and to signal in travel order.
func (r TrainRouteCommand) Signals() []int {
	res := make([]int, 0, 2+len(r.Intermediates))
	res = append(res, r.From)
	res = append(res, r.Intermediates...)
	return append(res, r.To)
}

// SameRoute reports whether r and o describe the same route (ignoring state and points).
func (r TrainRouteCommand) SameRoute(o TrainRouteCommand) bool {
	return r.From == o.From && r.To == o.To && slices.Equal(r.Intermediates, o.Intermediates)
}

// SamePoints reports whether r and o have Equal point commands in the same order.
func (r TrainRouteCommand) SamePoints(o TrainRouteCommand) bool {
	return slices.EqualFunc(r.Points, o.Points, PointCommand.Equal)
}

// Name is the route's operator notation, e.g. "21-31" or "21.25.31".
func (r TrainRouteCommand) Name() string {
	if len(r.Intermediates) == 0 {
		return fmt.Sprintf("%d-%d", r.From, r.To)
	}
	ss := make([]string, 0, 2+len(r.Intermediates))
	for _, s := range r.Signals() {
		ss = append(ss, fmt.Sprint(s))
	}
	return strings.Join(ss, ".")
}

func (r TrainRouteCommand) String() string {
	return fmt.Sprintf("route(%s %s %v)", r.Name(), r.State, r.Points)
}
