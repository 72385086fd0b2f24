package conn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rendo/model"
)

func TestPointLines(t *testing.T) {
	type setup struct {
		name   string
		c      model.PointCommand
		set    []string
		lock   []string
		unlock []string
	}
	p := model.Point{Number: 5, StraightAddresses: []int{810, 809}, DivergingAddresses: []int{-811}, LockAddressOffset: 1000}
	setups := []setup{
		{
			"straight",
			model.NewPointCommand(5, model.PositionStraight).For(p).Build(),
			[]string{"A0809C", "A0810C"},
			[]string{"A1809T", "A1810T"},
			[]string{"A1809C", "A1810C"},
		},
		{
			"diverging-inverted",
			model.NewPointCommand(5, model.PositionDiverging).For(p).Build(),
			[]string{"A0811C"},
			[]string{"A1811C"},
			[]string{"A1811T"},
		},
		{
			"no-lock",
			model.NewPointCommand(6, model.PositionDiverging).Addresses([]int{12}).Build(),
			[]string{"A0012T"},
			nil,
			nil,
		},
	}
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			if diff := cmp.Diff(s.set, PointSetLines(s.c)); diff != "" {
				t.Fatalf("set: %s", diff)
			}
			if diff := cmp.Diff(s.lock, PointLockLines(s.c, true)); diff != "" {
				t.Fatalf("lock: %s", diff)
			}
			if diff := cmp.Diff(s.unlock, PointLockLines(s.c, false)); diff != "" {
				t.Fatalf("unlock: %s", diff)
			}
		})
	}
}

func TestLine(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewLine(buf)
	ctx := context.Background()
	if err := l.SendSignal(ctx, model.SignalCommand{Number: 21, Address: 120, Aspect: model.AspectGoShunting}); err != nil {
		t.Fatal(err)
	}
	if err := l.SendSignal(ctx, model.SignalCommand{Number: 22, Aspect: model.AspectGoMain}); err != nil {
		t.Fatal(err)
	}
	if err := l.SendTurntable(ctx, model.TurntableCommand{Track: 1, Address: 197, Position: model.PositionDiverging}); err != nil {
		t.Fatal(err)
	}
	if err := l.SendPointSet(ctx, model.NewPointCommand(1, model.PositionStraight).Addresses([]int{842}).Build()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("S0120Y\nT0197-\nA0842C\n", buf.String()); diff != "" {
		t.Fatalf("written: %s", diff)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.SendSignal(cctx, model.SignalCommand{Number: 21, Address: 120}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled send: %v", err)
	}
}

func TestParseId(t *testing.T) {
	if diff := cmp.Diff(Id{"rendo-accessory", "mega", "0"}, parseId("rendo-accessory/mega/0\r\n")); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(Id{"rendo-accessory", "", ""}, parseId("rendo-accessory")); diff != "" {
		t.Fatal(diff)
	}
}

// fakePort is one end of a pipe pair, answering the identify request like a board would.
type fakePort struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *fakePort) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

func TestSerialHandshake(t *testing.T) {
	hostR, boardW := io.Pipe()
	boardR, hostW := io.Pipe()
	port := &fakePort{Reader: hostR, Writer: hostW, closers: []io.Closer{hostR, hostW}}
	written := make(chan string, 4)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := boardR.Read(buf)
			if err != nil {
				return
			}
			written <- string(buf[:n])
			if strings.HasPrefix(string(buf[:n]), "I") {
				boardW.Write([]byte(" D booting\n I rendo-accessory/mega/0\n"))
			}
		}
	}()
	s, err := newSerial("/dev/fake", port)
	if err != nil {
		t.Fatalf("newSerial: %s", err)
	}
	defer s.Close()
	if s.Id.Type != "rendo-accessory" || s.Id.Instance != "0" {
		t.Fatalf("id: %s", s.Id)
	}
	if got := <-written; got != "I\n" {
		t.Fatalf("identify request: %q", got)
	}
	if err := s.SendPointSet(context.Background(), model.NewPointCommand(1, model.PositionDiverging).Addresses([]int{842}).Build()); err != nil {
		t.Fatalf("SendPointSet: %s", err)
	}
	select {
	case got := <-written:
		if got != "A0842T\n" {
			t.Fatalf("point line: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("point line not written")
	}
}
