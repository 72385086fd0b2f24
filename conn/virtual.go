package conn

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rendo/model"
)

// Kind is the kind of a recorded command.
type Kind string

const (
	KindPointSet    Kind = "point-set"
	KindPointLock   Kind = "point-lock"
	KindPointUnlock Kind = "point-unlock"
	KindSignal      Kind = "signal"
	KindTurntable   Kind = "turntable"
)

// Record is one command a Virtual channel received.
type Record struct {
	Kind Kind
	// Subject is the command's String().
	Subject string
	// Lines are the protocol lines a Line channel would have written.
	Lines []string
}

// Virtual is a Channel with no hardware behind it. It records every command it receives.
type Virtual struct {
	lock    sync.Mutex
	records []Record
	// Fail, if set, is called for each command before it is recorded; a non-nil error is
	// returned to the caller and the command isn't recorded.
	Fail func(r Record) error
}

func NewVirtual() *Virtual {
	return new(Virtual)
}

func (v *Virtual) record(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.Fail != nil {
		if err := v.Fail(r); err != nil {
			return err
		}
	}
	v.records = append(v.records, r)
	return nil
}

// Records returns what was received so far.
func (v *Virtual) Records() []Record {
	v.lock.Lock()
	defer v.lock.Unlock()
	return slices.Clone(v.records)
}

// Subjects returns "kind subject" for each record, for compact comparisons.
func (v *Virtual) Subjects() []string {
	v.lock.Lock()
	defer v.lock.Unlock()
	res := make([]string, len(v.records))
	for i, r := range v.records {
		res[i] = string(r.Kind) + " " + r.Subject
	}
	return res
}

// Reset forgets all records.
func (v *Virtual) Reset() {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.records = nil
}

func (v *Virtual) SendPointSet(ctx context.Context, c model.PointCommand) error {
	return v.record(ctx, Record{KindPointSet, c.String(), PointSetLines(c)})
}

func (v *Virtual) SendPointLock(ctx context.Context, c model.PointCommand) error {
	if !c.HasLock() {
		return nil
	}
	return v.record(ctx, Record{KindPointLock, c.String(), PointLockLines(c, true)})
}

func (v *Virtual) SendPointUnlock(ctx context.Context, c model.PointCommand) error {
	if !c.HasLock() {
		return nil
	}
	return v.record(ctx, Record{KindPointUnlock, c.String(), PointLockLines(c, false)})
}

func (v *Virtual) SendSignal(ctx context.Context, c model.SignalCommand) error {
	return v.record(ctx, Record{KindSignal, c.String(), SignalLines(c)})
}

func (v *Virtual) SendTurntable(ctx context.Context, c model.TurntableCommand) error {
	return v.record(ctx, Record{KindTurntable, c.String(), TurntableLines(c)})
}

func (v *Virtual) Close() error { return nil }
