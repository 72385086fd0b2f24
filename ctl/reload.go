package ctl

import (
	"context"

	"go.uber.org/zap"
	"nyiyui.ca/hato/rendo/config"
	"nyiyui.ca/hato/rendo/station"
	"nyiyui.ca/hato/rendo/validate"
)

// reload rereads the station files and reconciles the active routes. If the files can't be
// read, the current station stays.
func (c *Controller) reload(ctx context.Context) DataChanged {
	st, err := station.LoadFiles(c.conf.Station...)
	if err != nil {
		c.metrics.reloads.WithLabelValues(result(err)).Inc()
		zap.S().Errorw("reload failed", "err", err)
		d := newDataChanged(c.session, nil, validate.Result{}, err)
		c.dataSender.Send(d)
		return d
	}
	c.metrics.reloads.WithLabelValues(result(nil)).Inc()
	d := c.apply(st)
	c.reconcile(ctx)
	return d
}

func (c *Controller) apply(st *station.Station) DataChanged {
	v := validate.Station(st)
	c.st, c.validation = st, v
	for _, w := range st.Warnings {
		zap.S().Warnw("station", "source", w.Source, "line", w.Line, "section", w.Section, "text", w.Text, "reason", w.Reason)
	}
	for _, i := range v.Issues {
		zap.S().Warnw("invalid route", "route", i.Route.Name(), "kind", i.Kind, "detail", i.Detail)
	}
	zap.S().Infow("station loaded",
		"name", st.Name,
		"points", len(st.Points),
		"routes", len(v.Valid),
		"invalid", len(v.Invalid),
		"warnings", len(st.Warnings),
	)
	c.metrics.parseWarnings.Set(float64(len(st.Warnings)))
	c.metrics.invalidRoutes.Set(float64(len(v.Invalid)))
	d := newDataChanged(c.session, st, v, nil)
	c.dataSender.Send(d)
	return d
}

// reconcile cancels (or, with config.ReconcileKeep, only reports) every active route that the
// current station no longer has as a valid route with the same points.
func (c *Controller) reconcile(ctx context.Context) {
	for _, r := range c.engine.Routes() {
		var reason string
		nr, ok := c.st.Route(r.From, r.To, r.Intermediates...)
		switch {
		case !ok:
			reason = "route removed"
		case !c.validation.IsValid(nr):
			reason = "route invalid"
		case !nr.SamePoints(r):
			reason = "points changed"
		default:
			continue
		}
		if c.conf.Reconcile == config.ReconcileKeep {
			zap.S().Warnw("active route changed by reload, keeping locks", "route", r.Name(), "reason", reason)
			c.feedback(Feedback{Kind: "reconcile", Command: r.Name(), Message: "kept: " + reason})
			continue
		}
		if p, ok := c.pending[r.To]; ok && p.route.SameRoute(r) {
			p.timer.Stop()
			delete(c.pending, r.To)
		}
		stopErr := c.stopSignals(ctx, r)
		_, err := c.release(ctx, r)
		if stopErr != nil {
			err = stopErr
		}
		c.feedback(Feedback{Kind: "reconcile", Command: r.Name(), Err: err, Message: "cancelled: " + reason})
	}
}
