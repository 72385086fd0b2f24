package conn

import (
	"context"
	"fmt"
	"io"
	"sync"

	"nyiyui.ca/hato/rendo/model"
)

// ReqAccessory switches one accessory decoder output.
type ReqAccessory struct {
	Address int
	Thrown  bool
}

func (r ReqAccessory) String() string {
	// A0842T
	// A - accessory
	//  0842 - address
	//      T - thrown (C - closed)
	state := 'C'
	if r.Thrown {
		state = 'T'
	}
	return fmt.Sprintf("A%04d%c", r.Address, state)
}

// ReqSignal sets a signal's aspect.
type ReqSignal struct {
	Address int
	Aspect  model.Aspect
}

func (r ReqSignal) String() string {
	// S0120G
	// S - signal
	//  0120 - address
	//      G - go main (Y - go shunting, R - stop)
	var aspect byte
	switch r.Aspect {
	case model.AspectStop:
		aspect = 'R'
	case model.AspectGoMain:
		aspect = 'G'
	case model.AspectGoShunting:
		aspect = 'Y'
	default:
		panic(fmt.Sprintf("invalid Aspect %d", int(r.Aspect)))
	}
	return fmt.Sprintf("S%04d%c", r.Address, aspect)
}

// ReqTurntable turns the turntable bridge to a track.
type ReqTurntable struct {
	Address int
	// Reverse turns the bridge's other end to the track.
	Reverse bool
}

func (r ReqTurntable) String() string {
	end := '+'
	if r.Reverse {
		end = '-'
	}
	return fmt.Sprintf("T%04d%c", r.Address, end)
}

// accessories returns the requests that put addrs in the thrown state (or closed if !thrown).
// A negative address inverts its output.
func accessories(addrs []int, thrown bool) []ReqAccessory {
	res := make([]ReqAccessory, 0, len(addrs))
	for _, a := range addrs {
		if a < 0 {
			res = append(res, ReqAccessory{Address: -a, Thrown: !thrown})
		} else {
			res = append(res, ReqAccessory{Address: a, Thrown: thrown})
		}
	}
	return res
}

// PointSetLines returns the protocol lines that move c's point.
func PointSetLines(c model.PointCommand) []string {
	return lines(accessories(c.Addresses(), c.IsDiverging()))
}

// PointLockLines returns the protocol lines that engage (or release, if !lock) c's point lock.
func PointLockLines(c model.PointCommand, lock bool) []string {
	if !c.HasLock() {
		return nil
	}
	return lines(accessories(c.LockAddresses(), lock))
}

// SignalLines returns the protocol lines for c; none if the signal has no address.
func SignalLines(c model.SignalCommand) []string {
	if c.Address <= 0 {
		return nil
	}
	return []string{ReqSignal{Address: c.Address, Aspect: c.Aspect}.String()}
}

// TurntableLines returns the protocol lines for c.
func TurntableLines(c model.TurntableCommand) []string {
	return []string{ReqTurntable{Address: c.Address, Reverse: c.Position == model.PositionDiverging}.String()}
}

func lines(reqs []ReqAccessory) []string {
	res := make([]string, len(reqs))
	for i, r := range reqs {
		res[i] = r.String()
	}
	return res
}

// Line is a Channel writing one protocol line per request to w.
type Line struct {
	fileLock sync.Mutex
	w        io.Writer
}

func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) write(ctx context.Context, ls []string) error {
	l.fileLock.Lock()
	defer l.fileLock.Unlock()
	for _, s := range ls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(l.w, "%s\n", s); err != nil {
			return fmt.Errorf("commit %s: %w", s, err)
		}
	}
	return nil
}

func (l *Line) SendPointSet(ctx context.Context, c model.PointCommand) error {
	return l.write(ctx, PointSetLines(c))
}

func (l *Line) SendPointLock(ctx context.Context, c model.PointCommand) error {
	return l.write(ctx, PointLockLines(c, true))
}

func (l *Line) SendPointUnlock(ctx context.Context, c model.PointCommand) error {
	return l.write(ctx, PointLockLines(c, false))
}

func (l *Line) SendSignal(ctx context.Context, c model.SignalCommand) error {
	return l.write(ctx, SignalLines(c))
}

func (l *Line) SendTurntable(ctx context.Context, c model.TurntableCommand) error {
	return l.write(ctx, TurntableLines(c))
}

// Close closes the underlying writer if it is an io.Closer.
func (l *Line) Close() error {
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
