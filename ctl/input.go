package ctl

import (
	"fmt"
	"strconv"
	"strings"

	"nyiyui.ca/hato/rendo/model"
)

type CommandKind int

const (
	CommandPoint CommandKind = iota
	CommandTurntable
	CommandRoute
	CommandAllSignalsStop
	CommandClearAll
	CommandReload
)

func (k CommandKind) String() string {
	switch k {
	case CommandPoint:
		return "point"
	case CommandTurntable:
		return "turntable"
	case CommandRoute:
		return "route"
	case CommandAllSignalsStop:
		return "all-signals-stop"
	case CommandClearAll:
		return "clear-all"
	case CommandReload:
		return "reload"
	default:
		panic(fmt.Sprintf("invalid CommandKind %d", int(k)))
	}
}

// Command is one complete operator command.
type Command struct {
	Kind CommandKind
	// Input is the operator text the command was read from.
	Input string
	// Point has only a number and position; the controller fills in addresses.
	Point     model.PointCommand
	Turntable model.TurntableCommand
	// Route has signals and a state; the controller looks up its points.
	Route model.TrainRouteCommand
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPoint:
		return fmt.Sprintf("%d%s", c.Point.Number(), c.Point.Position())
	case CommandTurntable:
		return c.Turntable.String()
	case CommandRoute:
		if c.Route.From <= 0 {
			return fmt.Sprintf("%d %s", c.Route.To, c.Route.State)
		}
		return fmt.Sprintf("%s %s", c.Route.Name(), c.Route.State)
	default:
		return c.Kind.String()
	}
}

const (
	keyEscape  = 0x1b
	keyDiscard = 'c'
)

// InputBuffer assembles operator keystrokes into commands.
//
//	NNN+ NNN-       point NNN straight / diverging
//	(NNN+ (NNN-     turntable to track NNN
//	FFTT= FFTT*     set route FF-TT main / shunting (the digits are split in half)
//	F1.F2.F3=       set a composite route (also with *)
//	TT/             clear the route ending at TT (release after a delay)
//	TT!             cancel the route ending at TT (release now)
//	/ ! R           on an empty buffer: all signals stop, clear all, reload
//	c ESC           discard the buffer
type InputBuffer struct {
	buf []byte
}

func (b *InputBuffer) String() string { return string(b.buf) }

// Len returns the number of buffered keystrokes.
func (b *InputBuffer) Len() int { return len(b.buf) }

func (b *InputBuffer) Reset() { b.buf = b.buf[:0] }

// Feed adds one keystroke. done is true when it completed a command; err is set when the buffer
// doesn't form a command, in which case the buffer is discarded.
func (b *InputBuffer) Feed(key byte) (cmd Command, done bool, err error) {
	switch {
	case isDigit(key), key == '.', key == '(' && len(b.buf) == 0:
		b.buf = append(b.buf, key)
		return Command{}, false, nil
	case key == ' ', key == '\n', key == '\r', key == '\t':
		return Command{}, false, nil
	case key == keyDiscard, key == keyEscape:
		b.Reset()
		return Command{}, false, nil
	}
	input := string(append(b.buf, key))
	body := string(b.buf)
	b.Reset()
	cmd, err = parseCommand(body, key)
	cmd.Input = input
	if err != nil {
		return cmd, true, fmt.Errorf("%q: %w", input, err)
	}
	return cmd, true, nil
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func parseCommand(body string, key byte) (Command, error) {
	if body == "" {
		switch key {
		case '/':
			return Command{Kind: CommandAllSignalsStop}, nil
		case '!':
			return Command{Kind: CommandClearAll}, nil
		case 'R', 'r':
			return Command{Kind: CommandReload}, nil
		}
		return Command{}, ErrUndefinedCommand
	}
	switch key {
	case '+', '-':
		pos, _ := model.PositionFromSign(key)
		if strings.HasPrefix(body, "(") {
			n, err := number(body[1:])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: CommandTurntable, Turntable: model.TurntableCommand{Track: n, Position: pos}}, nil
		}
		n, err := number(body)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandPoint, Point: model.NewPointCommand(n, pos).Build()}, nil
	case '=', '*':
		state := model.RouteSetMain
		if key == '*' {
			state = model.RouteSetShunting
		}
		signals, err := routeSignals(body)
		if err != nil {
			return Command{}, err
		}
		r := model.TrainRouteCommand{From: signals[0], To: signals[len(signals)-1], State: state}
		if len(signals) > 2 {
			r.Intermediates = signals[1 : len(signals)-1]
		}
		return Command{Kind: CommandRoute, Route: r}, nil
	case '/', '!':
		state := model.RouteClear
		if key == '!' {
			state = model.RouteCancel
		}
		r := model.TrainRouteCommand{State: state}
		if strings.Contains(body, ".") {
			signals, err := routeSignals(body)
			if err != nil {
				return Command{}, err
			}
			r.From, r.To = signals[0], signals[len(signals)-1]
		} else {
			n, err := number(body)
			if err != nil {
				return Command{}, err
			}
			r.To = n
		}
		return Command{Kind: CommandRoute, Route: r}, nil
	}
	return Command{}, ErrUndefinedCommand
}

func number(s string) (int, error) {
	if s == "" || strings.ContainsAny(s, ".(") {
		return 0, ErrUndefinedCommand
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, ErrUndefinedCommand
	}
	return n, nil
}

// routeSignals splits F1.F2.F3, or FFTT into two halves.
func routeSignals(body string) ([]int, error) {
	if strings.Contains(body, ".") {
		var res []int
		for _, part := range strings.Split(body, ".") {
			n, err := number(part)
			if err != nil {
				return nil, err
			}
			res = append(res, n)
		}
		if len(res) < 2 {
			return nil, ErrUndefinedCommand
		}
		return res, nil
	}
	if len(body) < 2 || len(body)%2 != 0 {
		return nil, ErrUndefinedCommand
	}
	from, err := number(body[:len(body)/2])
	if err != nil {
		return nil, err
	}
	to, err := number(body[len(body)/2:])
	if err != nil {
		return nil, err
	}
	return []int{from, to}, nil
}

// ParseInput feeds every keystroke of s to b and returns the completed commands and the errors
// of the ones that didn't parse.
func (b *InputBuffer) ParseInput(s string) (cmds []Command, errs []error) {
	for i := 0; i < len(s); i++ {
		cmd, done, err := b.Feed(s[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, errs
}
