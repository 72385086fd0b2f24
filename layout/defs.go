package layout

import (
	"fmt"
	"strconv"
)

// Direction is the side of a switch point its arms leave towards.
type Direction bool

const (
	// Forward points diverge towards higher columns.
	Forward Direction = true
	// Backward points diverge towards lower columns.
	Backward Direction = false
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// PointDefinition is a point as drawn in the station description.
type PointDefinition struct {
	// Label is the human identifier; its leading digits are the point number.
	Label string
	// SwitchPoint is where the mechanism sits.
	SwitchPoint Coord
	// ExplicitEnd is the arm named in the station description.
	ExplicitEnd Coord
	Direction   Direction
	// ExplicitEndIsStraight is true if ExplicitEnd is the straight arm, false if it is the diverging one.
	ExplicitEndIsStraight bool
}

func (d PointDefinition) String() string {
	arm := "diverging"
	if d.ExplicitEndIsStraight {
		arm = "straight"
	}
	return fmt.Sprintf("point-def(%s %s→%s %s %s)", d.Label, d.SwitchPoint, d.ExplicitEnd, d.Direction, arm)
}

// Number returns the point number encoded by the label's leading digits.
func (d PointDefinition) Number() (int, bool) {
	return LabelNumber(d.Label)
}

// LabelNumber parses the leading decimal digits of label ("12a" → 12).
func LabelNumber(label string) (int, bool) {
	i := 0
	for i < len(label) && '0' <= label[i] && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SignalType is the kind of signal.
type SignalType int

const (
	SignalDefault SignalType = iota
	SignalHidden
	SignalOutboundMain
	SignalInboundMain
	SignalMainDwarf
	SignalShuntingDwarf
)

func (t SignalType) String() string {
	switch t {
	case SignalDefault:
		return "default"
	case SignalHidden:
		return "hidden"
	case SignalOutboundMain:
		return "outbound-main"
	case SignalInboundMain:
		return "inbound-main"
	case SignalMainDwarf:
		return "main-dwarf"
	case SignalShuntingDwarf:
		return "shunting-dwarf"
	default:
		panic(fmt.Sprintf("invalid SignalType %d", int(t)))
	}
}

// SignalTypeFromMarker maps the station description's one-letter type marker.
func SignalTypeFromMarker(marker string) (SignalType, bool) {
	switch marker {
	case "":
		return SignalDefault, true
	case "x":
		return SignalHidden, true
	case "u":
		return SignalOutboundMain, true
	case "i":
		return SignalInboundMain, true
	case "h":
		return SignalMainDwarf, true
	case "d":
		return SignalShuntingDwarf, true
	}
	return SignalDefault, false
}

// SignalDefinition is a signal placed on the grid.
type SignalDefinition struct {
	Name  string
	Coord Coord
	// DrivesRight is true when trains pass this signal towards higher columns.
	DrivesRight bool
	Type        SignalType
	// Label is an optional display label.
	Label string
	// Address and FeedbackAddress are 0 if not given.
	Address         int
	FeedbackAddress int
}

// Number returns the signal's number, if the name is one.
func (s SignalDefinition) Number() (int, bool) {
	n, err := strconv.Atoi(s.Name)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s SignalDefinition) String() string {
	arrow := "<"
	if s.DrivesRight {
		arrow = ">"
	}
	return fmt.Sprintf("signal(%s%s %s %s)", arrow, s.Name, s.Coord, s.Type)
}

// LabelDefinition is a text annotation on the grid.
type LabelDefinition struct {
	Coord Coord
	Text  string
}

// GapDefinition marks a gap at a coordinate, or on the link between Coord and End.
type GapDefinition struct {
	Coord Coord
	End   Coord
	// OnLink is true if End is set.
	OnLink bool
}
