package model

import "fmt"

// Aspect is what a signal shows.
type Aspect int

const (
	AspectStop Aspect = iota
	AspectGoMain
	AspectGoShunting
)

func (a Aspect) String() string {
	switch a {
	case AspectStop:
		return "stop"
	case AspectGoMain:
		return "go-main"
	case AspectGoShunting:
		return "go-shunting"
	default:
		panic(fmt.Sprintf("invalid Aspect %d", int(a)))
	}
}

// AspectFor returns the aspect a route's signals show when it is set.
func AspectFor(s RouteState) Aspect {
	switch s {
	case RouteSetMain:
		return AspectGoMain
	case RouteSetShunting:
		return AspectGoShunting
	}
	return AspectStop
}

// SignalCommand asks one signal to show an aspect.
type SignalCommand struct {
	Number int
	// Address is the signal's hardware address; 0 if it has none.
	Address int
	Aspect  Aspect
}

func (c SignalCommand) String() string {
	return fmt.Sprintf("signal(%d@%d %s)", c.Number, c.Address, c.Aspect)
}

// TurntableCommand asks the turntable to turn to a track.
type TurntableCommand struct {
	Track   int
	Address int
	// Position selects the end of the bridge facing the track (+ / -).
	Position Position
}

func (c TurntableCommand) String() string {
	return fmt.Sprintf("turntable(%d@%d %s)", c.Track, c.Address, c.Position)
}
