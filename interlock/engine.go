// Package interlock keeps track of which points active train routes hold, so that no two routes
// can need a point in different positions at the same time.
//
// An Engine is not safe for concurrent use; it expects a single dispatch loop to own it.
package interlock

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rendo/model"
)

var (
	ErrUndefined = errors.New("route is undefined")
	ErrNotSet    = errors.New("route does not ask to be set")
	ErrConflict  = errors.New("point locked in the other position")
)

// PointLock is a lock held on one point number.
type PointLock struct {
	Command model.PointCommand
	// Committed is set once the point's hardware command has been sent.
	Committed bool
}

func (l PointLock) String() string {
	if l.Committed {
		return fmt.Sprintf("lock(%s committed)", l.Command)
	}
	return fmt.Sprintf("lock(%s)", l.Command)
}

// Engine holds point locks on behalf of the currently active routes.
type Engine struct {
	locks  map[int]*PointLock
	routes []model.TrainRouteCommand
}

func New() *Engine {
	return &Engine{locks: map[int]*PointLock{}}
}

// CanReserveLocksFor reports whether r can be reserved: r is defined and none of its points
// is locked in another position.
func (e *Engine) CanReserveLocksFor(r model.TrainRouteCommand) bool {
	return e.check(r) == nil
}

func (e *Engine) check(r model.TrainRouteCommand) error {
	if r.IsUndefined() {
		return ErrUndefined
	}
	if !r.IsSet() {
		return nil
	}
	for _, c := range r.Points {
		if e.IsLocked(c) {
			return fmt.Errorf("point %d: %w", c.Number(), ErrConflict)
		}
	}
	return nil
}

// ReserveLocks records r as active and creates an uncommitted lock for each of its points that
// isn't locked yet. Points already locked (in the same position) are shared with r.
// Reserving a route that is already active replaces it; the locks only the replaced route held
// are dropped and returned.
func (e *Engine) ReserveLocks(r model.TrainRouteCommand) ([]model.PointCommand, error) {
	if err := e.check(r); err != nil {
		return nil, err
	}
	if !r.IsSet() {
		return nil, ErrNotSet
	}
	for _, c := range r.Points {
		if _, ok := e.locks[c.Number()]; !ok {
			e.locks[c.Number()] = &PointLock{Command: c}
		}
	}
	r = r.WithState(r.State)
	i := slices.IndexFunc(e.routes, r.SameRoute)
	if i == -1 {
		e.routes = append(e.routes, r)
		return nil, nil
	}
	old := e.routes[i]
	e.routes[i] = r
	return e.dropUnused(old.Points), nil
}

// dropUnused drops the locks of cmds' points that no active route uses any more.
func (e *Engine) dropUnused(cmds []model.PointCommand) []model.PointCommand {
	var released []model.PointCommand
	for _, c := range cmds {
		l, ok := e.locks[c.Number()]
		if !ok || e.usedByActive(c.Number()) {
			continue
		}
		delete(e.locks, c.Number())
		released = append(released, l.Command)
	}
	return released
}

// CommitLocks marks the locks of a set route as committed.
func (e *Engine) CommitLocks(r model.TrainRouteCommand) {
	if !r.IsSet() {
		return
	}
	for _, c := range r.Points {
		if l, ok := e.locks[c.Number()]; ok {
			l.Committed = true
		}
	}
}

// ActiveRoute returns the active route ending at to. If from is not 0 it must match too.
// The most recently reserved route wins when several end at to.
func (e *Engine) ActiveRoute(from, to int) (model.TrainRouteCommand, bool) {
	i := e.activeIndex(from, to)
	if i == -1 {
		return model.TrainRouteCommand{}, false
	}
	return e.routes[i].WithState(e.routes[i].State), true
}

func (e *Engine) activeIndex(from, to int) int {
	for i := len(e.routes) - 1; i >= 0; i-- {
		r := e.routes[i]
		if r.To == to && (from <= 0 || r.From == from) {
			return i
		}
	}
	return -1
}

// ClearLocks removes the active route r tears down (see ActiveRoute) and releases each of its
// points no other active route still uses. It returns the released locks' commands.
func (e *Engine) ClearLocks(r model.TrainRouteCommand) []model.PointCommand {
	i := e.activeIndex(r.From, r.To)
	if i == -1 {
		return nil
	}
	active := e.routes[i]
	e.routes = slices.Delete(e.routes, i, i+1)
	return e.dropUnused(active.Points)
}

func (e *Engine) usedByActive(number int) bool {
	for _, r := range e.routes {
		if r.UsesPoint(number) {
			return true
		}
	}
	return false
}

// ReleaseAllLocks drops every lock and active route, returning the released commands in point
// number order.
func (e *Engine) ReleaseAllLocks() []model.PointCommand {
	res := make([]model.PointCommand, 0, len(e.locks))
	for _, l := range e.Locks() {
		res = append(res, l.Command)
	}
	e.locks = map[int]*PointLock{}
	e.routes = nil
	return res
}

// IsLocked reports whether c's point is locked in a position other than c's.
func (e *Engine) IsLocked(c model.PointCommand) bool {
	l, ok := e.locks[c.Number()]
	return ok && l.Command.Position() != c.Position()
}

// Lock returns the lock held on point number.
func (e *Engine) Lock(number int) (PointLock, bool) {
	l, ok := e.locks[number]
	if !ok {
		return PointLock{}, false
	}
	return *l, true
}

// Locks returns all locks ordered by point number.
func (e *Engine) Locks() []PointLock {
	res := make([]PointLock, 0, len(e.locks))
	for _, l := range e.locks {
		res = append(res, *l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Command.Number() < res[j].Command.Number() })
	return res
}

// Routes returns the active routes in the order they were reserved.
func (e *Engine) Routes() []model.TrainRouteCommand {
	res := make([]model.TrainRouteCommand, len(e.routes))
	for i, r := range e.routes {
		res[i] = r.WithState(r.State)
	}
	return res
}
