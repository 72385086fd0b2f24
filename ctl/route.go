package ctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rendo/model"
)

func (c *Controller) setPoint(ctx context.Context, req model.PointCommand) (string, error) {
	p, ok := c.st.Points[req.Number()]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPoint, req.Number())
	}
	cmd := model.NewPointCommand(req.Number(), req.Position()).For(p).Build()
	if c.engine.IsLocked(cmd) {
		l, _ := c.engine.Lock(cmd.Number())
		return "", fmt.Errorf("%w: %s", ErrPointLocked, l)
	}
	if err := c.conf.Channel.SendPointSet(ctx, cmd); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHardware, err)
	}
	return "", nil
}

func (c *Controller) turn(ctx context.Context, req model.TurntableCommand) (string, error) {
	addr, ok := c.st.TurntableTracks[req.Track]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownTurntableTrack, req.Track)
	}
	req.Address = addr
	if err := c.conf.Channel.SendTurntable(ctx, req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHardware, err)
	}
	return "", nil
}

func (c *Controller) setRoute(ctx context.Context, req model.TrainRouteCommand) (string, error) {
	r, ok := c.st.Route(req.From, req.To, req.Intermediates...)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, req.Name())
	}
	if !c.validation.IsValid(r) {
		return "", fmt.Errorf("%w: %s is invalid", ErrUnknownRoute, r.Name())
	}
	r = r.WithState(req.State)
	var msg string
	if p, ok := c.pending[r.To]; ok {
		if !p.route.SameRoute(r) {
			return "", fmt.Errorf("%w: %s is being released", ErrRouteConflict, p.route.Name())
		}
		p.timer.Stop()
		delete(c.pending, r.To)
		msg = "release cancelled"
	}
	for _, p := range r.Points {
		if c.engine.IsLocked(p) {
			l, _ := c.engine.Lock(p.Number())
			return msg, fmt.Errorf("%w: %s", ErrRouteConflict, l)
		}
	}
	prior, active := c.activeRoute(r)
	if active && !prior.SamePoints(r) {
		// the old path must not show go once its points unlock
		if err := c.stopSignals(ctx, prior); err != nil {
			return msg, err
		}
	}
	released, err := c.engine.ReserveLocks(r)
	if err != nil {
		return msg, fmt.Errorf("%w: %w", ErrRouteConflict, err)
	}
	c.unlock(ctx, released)
	for _, p := range r.Points {
		if err := c.conf.Channel.SendPointSet(ctx, p); err != nil {
			return msg, c.rollback(ctx, r, active, err)
		}
		if err := c.conf.Channel.SendPointLock(ctx, p); err != nil {
			return msg, c.rollback(ctx, r, active, err)
		}
	}
	c.engine.CommitLocks(r)
	aspect := model.AspectFor(r.State)
	for _, n := range entrySignals(r) {
		if err := c.setSignal(ctx, n, aspect); err != nil {
			return msg, c.rollback(ctx, r, true, err)
		}
	}
	return msg, nil
}

// activeRoute returns the active route with r's signals.
func (c *Controller) activeRoute(r model.TrainRouteCommand) (model.TrainRouteCommand, bool) {
	for _, a := range c.engine.Routes() {
		if a.SameRoute(r) {
			return a, true
		}
	}
	return model.TrainRouteCommand{}, false
}

// rollback releases r's locks after a hardware failure and returns the failure. If r's signals
// may show a proceed aspect (signalled), they are stopped first.
func (c *Controller) rollback(ctx context.Context, r model.TrainRouteCommand, signalled bool, cause error) error {
	if signalled {
		if err := c.stopSignals(ctx, r); err != nil {
			zap.S().Errorw("stop signals during rollback", "route", r.Name(), "err", err)
		}
	}
	c.unlock(ctx, c.engine.ClearLocks(r))
	if errors.Is(cause, ErrHardware) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrHardware, cause)
}

func (c *Controller) unlock(ctx context.Context, released []model.PointCommand) {
	for _, p := range released {
		if err := c.conf.Channel.SendPointUnlock(ctx, p); err != nil {
			zap.S().Errorw("unlock", "point", p, "err", err)
		}
	}
}

// entrySignals are the signals a set route clears: the from signal and the intermediates.
func entrySignals(r model.TrainRouteCommand) []int {
	return append([]int{r.From}, r.Intermediates...)
}

func (c *Controller) setSignal(ctx context.Context, n int, a model.Aspect) error {
	cmd := model.SignalCommand{Number: n, Aspect: a}
	if sig, ok := c.st.Signal(n); ok {
		cmd.Address = sig.Address
	}
	if err := c.conf.Channel.SendSignal(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHardware, cmd, err)
	}
	c.signals[n] = a
	return nil
}

func (c *Controller) stopSignals(ctx context.Context, r model.TrainRouteCommand) error {
	var errs []error
	for _, n := range entrySignals(r) {
		if err := c.setSignal(ctx, n, model.AspectStop); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) releaseDelay() time.Duration {
	if c.conf.LockReleaseDelay != nil {
		return *c.conf.LockReleaseDelay
	}
	return c.st.LockReleaseDelay
}

func (c *Controller) clearRoute(ctx context.Context, req model.TrainRouteCommand) (string, error) {
	r, ok := c.engine.ActiveRoute(req.From, req.To)
	if !ok {
		return "", fmt.Errorf("%w: no active route to %d", ErrUnknownRoute, req.To)
	}
	if _, ok := c.pending[r.To]; ok {
		return "release already pending", nil
	}
	if err := c.stopSignals(ctx, r); err != nil {
		return "", err
	}
	delay := c.releaseDelay()
	if delay <= 0 {
		return c.release(ctx, r)
	}
	p := &pendingRelease{id: uuid.New(), route: r}
	fire := releaseRequest{to: r.To, id: p.id}
	p.timer = time.AfterFunc(delay, func() {
		select {
		case c.releases <- fire:
		case <-c.stopped:
		}
	})
	c.pending[r.To] = p
	return fmt.Sprintf("release in %s", delay), nil
}

func (c *Controller) handleRelease(ctx context.Context, req releaseRequest) {
	p, ok := c.pending[req.to]
	if !ok || p.id != req.id {
		// cancelled after the timer fired
		return
	}
	delete(c.pending, req.to)
	msg, err := c.release(ctx, p.route)
	c.feedback(Feedback{Kind: "release", Command: p.route.Name() + " release", Err: err, Message: msg})
	c.publishState()
}

// release clears r's locks now and unlocks the released points.
func (c *Controller) release(ctx context.Context, r model.TrainRouteCommand) (string, error) {
	released := c.engine.ClearLocks(r)
	var errs []error
	for _, p := range released {
		if err := c.conf.Channel.SendPointUnlock(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHardware, err)
	}
	return fmt.Sprintf("released %d points", len(released)), nil
}

func (c *Controller) cancelRoute(ctx context.Context, req model.TrainRouteCommand) (string, error) {
	r, ok := c.engine.ActiveRoute(req.From, req.To)
	if !ok {
		return "", fmt.Errorf("%w: no active route to %d", ErrUnknownRoute, req.To)
	}
	if p, ok := c.pending[r.To]; ok && p.route.SameRoute(r) {
		p.timer.Stop()
		delete(c.pending, r.To)
	}
	stopErr := c.stopSignals(ctx, r)
	msg, err := c.release(ctx, r)
	return msg, errors.Join(stopErr, err)
}

func (c *Controller) allSignalsStop(ctx context.Context) (string, error) {
	var errs []error
	n := 0
	for _, sig := range c.st.Signals {
		num, ok := sig.Number()
		if !ok {
			continue
		}
		if err := c.setSignal(ctx, num, model.AspectStop); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return fmt.Sprintf("%d signals stopped", n), errors.Join(errs...)
}

func (c *Controller) clearAll(ctx context.Context) (string, error) {
	c.stopPending()
	msg, stopErr := c.allSignalsStop(ctx)
	released := c.engine.ReleaseAllLocks()
	var errs []error
	for _, p := range released {
		if err := c.conf.Channel.SendPointUnlock(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	if unlockErr := errors.Join(errs...); unlockErr != nil {
		err = fmt.Errorf("%w: %w", ErrHardware, unlockErr)
	}
	return fmt.Sprintf("%s, released %d points", msg, len(released)), errors.Join(stopErr, err)
}
