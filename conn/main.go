// Package conn sends point, signal and turntable commands to the layout's hardware.
package conn

import (
	"context"
	"fmt"
	"strings"

	"nyiyui.ca/hato/rendo/model"
)

// Channel is where the dispatch loop sends hardware commands.
// Implementations must be safe for use by one goroutine at a time; they need not be safe for
// concurrent use.
type Channel interface {
	// SendPointSet moves a point to the command's position.
	SendPointSet(ctx context.Context, c model.PointCommand) error
	// SendPointLock engages the point's lock mechanism. Points without one are skipped.
	SendPointLock(ctx context.Context, c model.PointCommand) error
	// SendPointUnlock releases the point's lock mechanism. Points without one are skipped.
	SendPointUnlock(ctx context.Context, c model.PointCommand) error
	// SendSignal sets a signal's aspect. Signals without an address are skipped.
	SendSignal(ctx context.Context, c model.SignalCommand) error
	SendTurntable(ctx context.Context, c model.TurntableCommand) error
	Close() error
}

// Id identifies a connected controller board, as reported by its "I" reply.
type Id struct {
	Type     string
	Variant  string
	Instance string
}

func (i Id) String() string {
	return fmt.Sprintf("%s/%s-%s", i.Type, i.Variant, i.Instance)
}

// parseId parses TYPE/VARIANT/INSTANCE; missing parts are empty.
func parseId(id string) Id {
	ss := strings.SplitN(strings.TrimSpace(id), "/", 3)
	for len(ss) < 3 {
		ss = append(ss, "")
	}
	return Id{
		Type:     ss[0],
		Variant:  ss[1],
		Instance: ss[2],
	}
}
