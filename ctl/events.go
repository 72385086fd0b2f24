package ctl

import (
	"time"

	"github.com/google/uuid"
	"nyiyui.ca/hato/rendo/model"
	"nyiyui.ca/hato/rendo/station"
	"nyiyui.ca/hato/rendo/validate"
)

// Feedback is the outcome of one operator command.
type Feedback struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Input   string    `json:"input,omitempty"`
	Command string    `json:"command"`
	// Err is nil if the command succeeded.
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (f Feedback) OK() bool { return f.Err == nil }

func (f Feedback) String() string {
	if f.Err != nil {
		return f.Command + ": " + f.Err.Error()
	}
	if f.Message != "" {
		return f.Command + ": " + f.Message
	}
	return f.Command + ": ok"
}

// DataChanged is published after every reload.
type DataChanged struct {
	Session uuid.UUID        `json:"session"`
	Time    time.Time        `json:"time"`
	Station *station.Station `json:"-"`
	// Validation is empty if Err is set.
	Validation validate.Result   `json:"-"`
	Warnings   []station.Warning `json:"-"`
	// Err is set if the station could not be read; the previous station stays in use.
	Err error `json:"-"`

	Name          string   `json:"name"`
	ValidRoutes   []string `json:"validRoutes"`
	InvalidRoutes []string `json:"invalidRoutes"`
	Issues        []string `json:"issues"`
	WarningText   []string `json:"warnings"`
	Error         string   `json:"error,omitempty"`
}

func newDataChanged(session uuid.UUID, st *station.Station, v validate.Result, err error) DataChanged {
	d := DataChanged{Session: session, Time: time.Now(), Err: err}
	if err != nil {
		d.Error = err.Error()
		return d
	}
	d.Station = st
	d.Validation = v
	d.Warnings = st.Warnings
	d.Name = st.Name
	for _, r := range v.Valid {
		d.ValidRoutes = append(d.ValidRoutes, r.Name())
	}
	for _, r := range v.Invalid {
		d.InvalidRoutes = append(d.InvalidRoutes, r.Name())
	}
	for _, i := range v.Issues {
		d.Issues = append(d.Issues, i.Error())
	}
	for _, w := range st.Warnings {
		d.WarningText = append(d.WarningText, w.Error())
	}
	return d
}

// StateSnapshot is the controller's state after a command.
type StateSnapshot struct {
	Session uuid.UUID     `json:"session"`
	Time    time.Time     `json:"time"`
	Routes  []RouteStatus `json:"routes"`
	Locks   []LockStatus  `json:"locks"`
	// Signals is the last aspect sent to each signal.
	Signals map[int]model.Aspect `json:"-"`
	Aspects map[int]string       `json:"signals"`
}

type RouteStatus struct {
	Name          string   `json:"name"`
	From          int      `json:"from"`
	To            int      `json:"to"`
	Intermediates []int    `json:"intermediates,omitempty"`
	State         string   `json:"state"`
	Points        []string `json:"points"`
	// Releasing is set while a delayed release is pending.
	Releasing bool `json:"releasing"`
}

type LockStatus struct {
	Point     int    `json:"point"`
	Position  string `json:"position"`
	Committed bool   `json:"committed"`
}

// Route returns the status of the active route from → to.
func (s StateSnapshot) Route(from, to int) (RouteStatus, bool) {
	for _, r := range s.Routes {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return RouteStatus{}, false
}
