// Package ctl is the dispatch loop between the operator, the interlocking engine and the
// hardware channel.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"nyiyui.ca/hato/rendo/config"
	"nyiyui.ca/hato/rendo/conn"
	"nyiyui.ca/hato/rendo/interlock"
	"nyiyui.ca/hato/rendo/journal"
	"nyiyui.ca/hato/rendo/model"
	"nyiyui.ca/hato/rendo/notify"
	"nyiyui.ca/hato/rendo/station"
	"nyiyui.ca/hato/rendo/validate"
)

var (
	ErrUnknownPoint          = errors.New("unknown point")
	ErrUndefinedCommand      = errors.New("undefined command")
	ErrPointLocked           = errors.New("point locked")
	ErrUnknownRoute          = errors.New("unknown route")
	ErrRouteConflict         = errors.New("route conflicts with an active route")
	ErrUnknownTurntableTrack = errors.New("unknown turntable track")
	ErrHardware              = errors.New("hardware command failed")
	ErrStopped               = errors.New("controller stopped")
)

type Conf struct {
	// Station is the list of station description files.
	Station []string
	Channel conn.Channel
	// Journal is optional.
	Journal *journal.Journal
	// LockReleaseDelay overrides the station's setting if not nil.
	LockReleaseDelay *time.Duration
	// Reconcile is config.ReconcileRelease (the default if empty) or config.ReconcileKeep.
	Reconcile string
	// Registry receives the controller's metrics; a new one is made if nil.
	Registry *prometheus.Registry
}

type Controller struct {
	conf     Conf
	session  uuid.UUID
	registry *prometheus.Registry
	metrics  *metrics

	// owned by Run
	st         *station.Station
	validation validate.Result
	engine     *interlock.Engine
	pending    map[int]*pendingRelease
	signals    map[int]model.Aspect
	input      InputBuffer
	collected  []Feedback

	inputs   chan inputRequest
	releases chan releaseRequest
	reloads  chan chan DataChanged
	queries  chan chan StateSnapshot
	stopped  chan struct{}

	feedbackSender *notify.MultiplexerSender[Feedback]
	FeedbackMux    *notify.Multiplexer[Feedback]
	stateSender    *notify.MultiplexerSender[StateSnapshot]
	StateMux       *notify.Multiplexer[StateSnapshot]
	dataSender     *notify.MultiplexerSender[DataChanged]
	DataMux        *notify.Multiplexer[DataChanged]
}

type pendingRelease struct {
	id    uuid.UUID
	route model.TrainRouteCommand
	timer *time.Timer
}

type inputRequest struct {
	text  string
	cmd   *Command
	reply chan []Feedback
}

type releaseRequest struct {
	to int
	id uuid.UUID
}

// New loads the station and returns a Controller ready to Run.
func New(conf Conf) (*Controller, error) {
	if conf.Channel == nil {
		return nil, errors.New("ctl: no channel")
	}
	if conf.Reconcile == "" {
		conf.Reconcile = config.ReconcileRelease
	}
	st, err := station.LoadFiles(conf.Station...)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		conf:     conf,
		session:  uuid.New(),
		registry: conf.Registry,
		engine:   interlock.New(),
		pending:  map[int]*pendingRelease{},
		signals:  map[int]model.Aspect{},
		inputs:   make(chan inputRequest),
		releases: make(chan releaseRequest),
		reloads:  make(chan chan DataChanged),
		queries:  make(chan chan StateSnapshot),
		stopped:  make(chan struct{}),
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	c.metrics = newMetrics(c.registry)
	c.feedbackSender, c.FeedbackMux = notify.NewMultiplexerSender[Feedback]("ctl feedback")
	c.stateSender, c.StateMux = notify.NewMultiplexerSender[StateSnapshot]("ctl state")
	c.dataSender, c.DataMux = notify.NewMultiplexerSender[DataChanged]("ctl data")
	c.apply(st)
	c.publishState()
	return c, nil
}

// Registry returns the registry the controller's metrics are in.
func (c *Controller) Registry() *prometheus.Registry { return c.registry }

// Session identifies this Controller in events.
func (c *Controller) Session() uuid.UUID { return c.session }

// Run dispatches until ctx is done. Hardware commands are sent with ctx.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)
	defer c.stopPending()
	zap.S().Infow("ctl running", "session", c.session)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.inputs:
			c.collected = nil
			if req.cmd != nil {
				c.dispatch(ctx, *req.cmd)
			} else {
				c.feed(ctx, req.text)
			}
			c.publishState()
			req.reply <- c.collected
		case req := <-c.releases:
			c.collected = nil
			c.handleRelease(ctx, req)
		case reply := <-c.reloads:
			c.collected = nil
			d := c.reload(ctx)
			c.publishState()
			reply <- d
		case reply := <-c.queries:
			reply <- c.snapshot()
		}
	}
}

// Input feeds operator keystrokes to the dispatch loop and returns the feedback of the commands
// they completed. Keystrokes of an incomplete command stay buffered for the next call.
func (c *Controller) Input(ctx context.Context, text string) ([]Feedback, error) {
	return c.send(ctx, inputRequest{text: text, reply: make(chan []Feedback, 1)})
}

// Dispatch runs one command.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) ([]Feedback, error) {
	return c.send(ctx, inputRequest{cmd: &cmd, reply: make(chan []Feedback, 1)})
}

func (c *Controller) send(ctx context.Context, req inputRequest) ([]Feedback, error) {
	select {
	case c.inputs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopped:
		return nil, ErrStopped
	}
	select {
	case fb := <-req.reply:
		return fb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reload rereads the station files. Active routes are reconciled with the new routes.
func (c *Controller) Reload(ctx context.Context) (DataChanged, error) {
	reply := make(chan DataChanged, 1)
	select {
	case c.reloads <- reply:
	case <-ctx.Done():
		return DataChanged{}, ctx.Err()
	case <-c.stopped:
		return DataChanged{}, ErrStopped
	}
	select {
	case d := <-reply:
		return d, d.Err
	case <-ctx.Done():
		return DataChanged{}, ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)
	select {
	case c.queries <- reply:
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case <-c.stopped:
		return StateSnapshot{}, ErrStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

func (c *Controller) feed(ctx context.Context, text string) {
	for i := 0; i < len(text); i++ {
		cmd, done, err := c.input.Feed(text[i])
		if err != nil {
			c.feedback(Feedback{Kind: "input", Input: cmd.Input, Command: cmd.Input, Err: err})
			continue
		}
		if done {
			c.dispatch(ctx, cmd)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, cmd Command) {
	var msg string
	var err error
	switch cmd.Kind {
	case CommandPoint:
		msg, err = c.setPoint(ctx, cmd.Point)
	case CommandTurntable:
		msg, err = c.turn(ctx, cmd.Turntable)
	case CommandRoute:
		switch {
		case cmd.Route.IsSet():
			msg, err = c.setRoute(ctx, cmd.Route)
		case cmd.Route.IsClear():
			msg, err = c.clearRoute(ctx, cmd.Route)
		case cmd.Route.IsCancel():
			msg, err = c.cancelRoute(ctx, cmd.Route)
		default:
			err = ErrUndefinedCommand
		}
	case CommandAllSignalsStop:
		msg, err = c.allSignalsStop(ctx)
	case CommandClearAll:
		msg, err = c.clearAll(ctx)
	case CommandReload:
		d := c.reload(ctx)
		err = d.Err
		if err == nil {
			msg = fmt.Sprintf("%d routes, %d invalid, %d warnings", len(d.Validation.Valid), len(d.Validation.Invalid), len(d.Warnings))
		}
	default:
		err = ErrUndefinedCommand
	}
	c.feedback(Feedback{Kind: cmd.Kind.String(), Input: cmd.Input, Command: cmd.String(), Err: err, Message: msg})
}

func (c *Controller) feedback(f Feedback) {
	f.Time = time.Now()
	if f.Err != nil {
		f.Error = f.Err.Error()
		zap.S().Warnw("command failed", "kind", f.Kind, "input", f.Input, "command", f.Command, "err", f.Err)
	} else {
		zap.S().Infow("command", "kind", f.Kind, "input", f.Input, "command", f.Command, "message", f.Message)
	}
	c.metrics.commands.WithLabelValues(f.Kind, result(f.Err)).Inc()
	if c.conf.Journal != nil {
		_, err := c.conf.Journal.Append(journal.Entry{
			Time:    f.Time,
			Kind:    f.Kind,
			Input:   f.Input,
			Command: f.Command,
			OK:      f.OK(),
			Result:  f.Error,
		})
		if err != nil {
			zap.S().Errorw("journal append failed", "err", err)
		}
	}
	c.collected = append(c.collected, f)
	c.feedbackSender.Send(f)
}

func (c *Controller) snapshot() StateSnapshot {
	s := StateSnapshot{
		Session: c.session,
		Time:    time.Now(),
		Signals: maps.Clone(c.signals),
		Aspects: make(map[int]string, len(c.signals)),
	}
	for n, a := range c.signals {
		s.Aspects[n] = a.String()
	}
	for _, r := range c.engine.Routes() {
		rs := RouteStatus{
			Name:          r.Name(),
			From:          r.From,
			To:            r.To,
			Intermediates: r.Intermediates,
			State:         r.State.String(),
		}
		for _, p := range r.Points {
			rs.Points = append(rs.Points, p.String())
		}
		if p, ok := c.pending[r.To]; ok && p.route.SameRoute(r) {
			rs.Releasing = true
		}
		s.Routes = append(s.Routes, rs)
	}
	for _, l := range c.engine.Locks() {
		s.Locks = append(s.Locks, LockStatus{
			Point:     l.Command.Number(),
			Position:  l.Command.Position().String(),
			Committed: l.Committed,
		})
	}
	return s
}

func (c *Controller) publishState() {
	s := c.snapshot()
	c.metrics.activeRoutes.Set(float64(len(s.Routes)))
	c.metrics.pointLocks.Set(float64(len(s.Locks)))
	c.stateSender.Send(s)
}

func (c *Controller) stopPending() {
	for to, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, to)
	}
}
