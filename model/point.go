package model

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"
)

// Position is the position of a point (switch).
type Position int

const (
	PositionUndefined Position = iota
	PositionStraight
	PositionDiverging
)

func (p Position) String() string {
	switch p {
	case PositionStraight:
		return "+"
	case PositionDiverging:
		return "-"
	case PositionUndefined:
		return "?"
	default:
		panic(fmt.Sprintf("invalid Position %d", int(p)))
	}
}

// PositionFromSign maps the operator/station sign character to a Position.
func PositionFromSign(c byte) (Position, bool) {
	switch c {
	case '+':
		return PositionStraight, true
	case '-':
		return PositionDiverging, true
	}
	return PositionUndefined, false
}

// Opposite returns the other defined position. PositionUndefined stays undefined.
func (p Position) Opposite() Position {
	switch p {
	case PositionStraight:
		return PositionDiverging
	case PositionDiverging:
		return PositionStraight
	}
	return PositionUndefined
}

// Point is an addressable point as known to the hardware.
// A negative address flips the intended closed/thrown meaning of that output.
type Point struct {
	Number             int
	StraightAddresses  []int
	DivergingAddresses []int
	// LockAddressOffset is added to each address to get its lock address.
	// 0 means the point has no separate lock mechanism.
	LockAddressOffset int
	// SubPoints maps an absolute address to its sub-point letter (e.g. 'a' for 809a).
	SubPoints map[int]byte
}

func (p Point) String() string {
	return fmt.Sprintf("point(%d s%v d%v lock%+d)", p.Number, p.StraightAddresses, p.DivergingAddresses, p.LockAddressOffset)
}

// Addresses returns the addresses used to move the point to pos.
func (p Point) Addresses(pos Position) []int {
	switch pos {
	case PositionStraight:
		return p.StraightAddresses
	case PositionDiverging:
		return p.DivergingAddresses
	}
	return nil
}

// SubPoint returns the sub-point letter of addr, if any.
func (p Point) SubPoint(addr int) (byte, bool) {
	c, ok := p.SubPoints[abs(addr)]
	return c, ok
}

// PointCommand is a request for one point to be in one position.
// Build it with NewPointCommand; a built command is immutable.
type PointCommand struct {
	number            int
	position          Position
	lockAddressOffset int
	onRoute           bool
	addresses         []int
}

// PointCommandBuilder assembles a PointCommand.
type PointCommandBuilder struct {
	c PointCommand
}

// NewPointCommand starts a command for point number in position pos.
// Commands are on-route unless FlankProtection is called.
func NewPointCommand(number int, pos Position) *PointCommandBuilder {
	return &PointCommandBuilder{c: PointCommand{number: number, position: pos, onRoute: true}}
}

// FlankProtection marks the command as off-route (flank protection only).
func (b *PointCommandBuilder) FlankProtection() *PointCommandBuilder {
	b.c.onRoute = false
	return b
}

// OnRoute sets whether the command is on the route's path.
func (b *PointCommandBuilder) OnRoute(onRoute bool) *PointCommandBuilder {
	b.c.onRoute = onRoute
	return b
}

// LockAddressOffset sets the lock address offset.
func (b *PointCommandBuilder) LockAddressOffset(offset int) *PointCommandBuilder {
	b.c.lockAddressOffset = offset
	return b
}

// Addresses sets the hardware addresses. The slice is copied.
func (b *PointCommandBuilder) Addresses(addrs []int) *PointCommandBuilder {
	b.c.addresses = slices.Clone(addrs)
	return b
}

// For takes the addresses and lock offset from p for the command's position.
func (b *PointCommandBuilder) For(p Point) *PointCommandBuilder {
	b.Addresses(p.Addresses(b.c.position))
	b.c.lockAddressOffset = p.LockAddressOffset
	return b
}

// Build returns the finished command with its addresses normalized.
func (b *PointCommandBuilder) Build() PointCommand {
	c := b.c
	c.addresses = normalizeAddresses(c.addresses)
	return c
}

// normalizeAddresses returns a sorted copy; address order is not significant.
func normalizeAddresses(addrs []int) []int {
	if len(addrs) == 0 {
		return nil
	}
	res := slices.Clone(addrs)
	sort.Slice(res, func(i, j int) bool {
		ai, aj := abs(res[i]), abs(res[j])
		if ai != aj {
			return ai < aj
		}
		return res[i] < res[j]
	})
	return res
}

func (c PointCommand) Number() int { return c.number }

func (c PointCommand) Position() Position { return c.position }

// IsOnRoute is false for flank-protection points, which are not on the route's path.
func (c PointCommand) IsOnRoute() bool { return c.onRoute }

func (c PointCommand) LockAddressOffset() int { return c.lockAddressOffset }

// Addresses returns a copy of the normalized hardware addresses for the command's position.
func (c PointCommand) Addresses() []int { return slices.Clone(c.addresses) }

// HasLock reports whether the point has a separate lock mechanism.
func (c PointCommand) HasLock() bool { return c.lockAddressOffset != 0 && len(c.addresses) != 0 }

// LockAddresses returns the addresses of the point's lock mechanism.
// The sign of each address is kept.
func (c PointCommand) LockAddresses() []int {
	if c.lockAddressOffset == 0 {
		return nil
	}
	res := make([]int, len(c.addresses))
	for i, a := range c.addresses {
		if a < 0 {
			res[i] = a - c.lockAddressOffset
		} else {
			res[i] = a + c.lockAddressOffset
		}
	}
	return res
}

// IsUndefined is true when the command can't be sent to any point.
func (c PointCommand) IsUndefined() bool {
	return c.number <= 0 || c.position == PositionUndefined
}

// IsStraight reports whether the command sets the point straight.
func (c PointCommand) IsStraight() bool { return c.position == PositionStraight }

// IsDiverging reports whether the command sets the point diverging.
func (c PointCommand) IsDiverging() bool { return c.position == PositionDiverging }

// ConflictsWith is true if both commands target the same point in different positions.
func (c PointCommand) ConflictsWith(o PointCommand) bool {
	return c.number == o.number && c.position != o.position
}

// Equal compares number, position and addresses.
func (c PointCommand) Equal(o PointCommand) bool {
	return c.number == o.number && c.position == o.position && slices.Equal(c.addresses, o.addresses)
}

func (c PointCommand) String() string {
	b := new(strings.Builder)
	if !c.onRoute {
		b.WriteByte('x')
	}
	fmt.Fprintf(b, "%d%s", c.number, c.position)
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
