package model

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPointCommandNormalizesAddresses(t *testing.T) {
	a := NewPointCommand(3, PositionStraight).Addresses([]int{810, -809}).Build()
	b := NewPointCommand(3, PositionStraight).Addresses([]int{-809, 810}).Build()
	if !a.Equal(b) {
		t.Fatalf("expected %s and %s to be equal", a, b)
	}
	if diff := cmp.Diff([]int{-809, 810}, a.Addresses()); diff != "" {
		t.Fatalf("addresses diff: %s", diff)
	}
}

func TestPointCommandImmutable(t *testing.T) {
	addrs := []int{842}
	c := NewPointCommand(1, PositionStraight).Addresses(addrs).Build()
	addrs[0] = 1
	got := c.Addresses()
	got[0] = 2
	if diff := cmp.Diff([]int{842}, c.Addresses()); diff != "" {
		t.Fatalf("command mutated: %s", diff)
	}
}

func TestPointCommandFor(t *testing.T) {
	p := Point{
		Number:             7,
		StraightAddresses:  []int{807},
		DivergingAddresses: []int{-807, 808},
		LockAddressOffset:  100,
	}
	type setup struct {
		pos       Position
		addresses []int
		locks     []int
	}
	setups := []setup{
		{PositionStraight, []int{807}, []int{907}},
		{PositionDiverging, []int{-807, 808}, []int{-907, 908}},
	}
	for i, s := range setups {
		t.Run(fmt.Sprintf("%d-%s", i, s.pos), func(t *testing.T) {
			c := NewPointCommand(7, s.pos).For(p).Build()
			if diff := cmp.Diff(s.addresses, c.Addresses()); diff != "" {
				t.Fatalf("addresses: %s", diff)
			}
			if diff := cmp.Diff(s.locks, c.LockAddresses()); diff != "" {
				t.Fatalf("lock addresses: %s", diff)
			}
			if !c.HasLock() {
				t.Fatalf("expected lock")
			}
		})
	}
}

func TestPointCommandPredicates(t *testing.T) {
	s := NewPointCommand(4, PositionStraight).Build()
	d := NewPointCommand(4, PositionDiverging).FlankProtection().Build()
	other := NewPointCommand(5, PositionDiverging).Build()
	if !s.ConflictsWith(d) || !d.ConflictsWith(s) {
		t.Fatalf("expected %s and %s to conflict", s, d)
	}
	if s.ConflictsWith(other) {
		t.Fatalf("different points must not conflict")
	}
	if s.ConflictsWith(s) {
		t.Fatalf("same command must not conflict")
	}
	if d.IsOnRoute() {
		t.Fatalf("flank protection is not on route")
	}
	if got := d.String(); got != "x4-" {
		t.Fatalf("String: got %q", got)
	}
	if !NewPointCommand(0, PositionStraight).Build().IsUndefined() {
		t.Fatalf("point 0 must be undefined")
	}
	if !NewPointCommand(1, PositionUndefined).Build().IsUndefined() {
		t.Fatalf("undefined position must be undefined")
	}
	if s.HasLock() {
		t.Fatalf("no lock offset, no lock")
	}
}
