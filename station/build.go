package station

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rendo/layout"
	"nyiyui.ca/hato/rendo/model"
)

// maxSpan is the most columns one same-row link may be expanded over.
const maxSpan = 4096

// builder turns a lexed document into a Station. Sections are built in dependency order:
// settings, tracks, points, signals, annotations, turntable, translations, then routes.
type builder struct {
	st  *Station
	doc *document
}

func (b *builder) warn(l line, format string, a ...interface{}) {
	b.st.Warnings = append(b.st.Warnings, l.warn(fmt.Errorf(format, a...)))
}

func (b *builder) build() {
	b.st.Name = b.doc.name
	b.st.Warnings = append(b.st.Warnings, b.doc.warnings...)
	b.settings()
	b.tracks()
	b.points()
	b.signals()
	b.annotations()
	b.turntable()
	b.translations()
	b.routes()
}

// ParseDelay parses whole seconds ("2") or a duration ("1500ms").
func ParseDelay(v string) (time.Duration, error) {
	var d time.Duration
	if n, err := strconv.Atoi(v); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		d, err = time.ParseDuration(v)
		if err != nil {
			return 0, err
		}
	}
	if d < 0 {
		return 0, errors.New("negative delay")
	}
	return d, nil
}

func (b *builder) settings() {
	for _, kv := range b.doc.settings {
		switch strings.ToLower(kv.item.key) {
		case "lockoffset":
			n, err := strconv.Atoi(kv.item.value)
			if err != nil {
				b.warn(kv.line, "LockOffset: %w", err)
				continue
			}
			b.st.LockOffset = n
		case "lockreleasedelay":
			d, err := ParseDelay(kv.item.value)
			if err != nil {
				b.warn(kv.line, "LockReleaseDelay: %w", err)
				continue
			}
			b.st.LockReleaseDelay = d
		default:
			b.warn(kv.line, "unknown setting %q", kv.item.key)
		}
	}
}

func (b *builder) tracks() {
	g := b.st.Graph
	for _, lt := range b.doc.tracks {
		coords := lt.item.coords
		for _, tc := range coords {
			n := g.GetOrCreateNode(tc.c)
			if tc.necessary {
				n.Necessary = true
			}
		}
		for i := 1; i < len(coords); i++ {
			from, to := coords[i-1].c, coords[i].c
			if to.Col < from.Col {
				b.warn(lt.line, "link %s-%s runs towards a lower column", from, to)
			}
			if from.Row != to.Row {
				g.TryAddLink(from, to)
				continue
			}
			step := 1
			if to.Col < from.Col {
				step = -1
			}
			if span := (to.Col - from.Col) * step; span > maxSpan {
				b.warn(lt.line, "link %s-%s spans %d columns (more than %d), ignored", from, to, span, maxSpan)
				continue
			}
			for c := from.Col; c != to.Col; c += step {
				g.TryAddLink(layout.Coord{Row: from.Row, Col: c}, layout.Coord{Row: from.Row, Col: c + step})
			}
		}
	}
}

func (b *builder) points() {
	g := b.st.Graph
	for _, lp := range b.doc.points {
		var numbers []int
		for _, def := range lp.item.defs {
			if _, ok := g.Node(def.SwitchPoint); !ok {
				b.warn(lp.line, "point %s: switch point %s is not on a track", def.Label, def.SwitchPoint)
			} else if _, ok := g.Link(def.SwitchPoint, def.ExplicitEnd); !ok {
				b.warn(lp.line, "point %s: no track between %s and %s", def.Label, def.SwitchPoint, def.ExplicitEnd)
			}
			b.st.PointDefs = append(b.st.PointDefs, def)
			if n, ok := def.Number(); ok && !slices.Contains(numbers, n) {
				numbers = append(numbers, n)
			}
		}
		a := lp.item.addr
		if a == nil {
			continue
		}
		if len(numbers) == 0 {
			b.warn(lp.line, "addresses given for a point without a number")
			continue
		}
		for _, n := range numbers {
			b.st.Points[n] = b.mergePoint(n, a)
		}
	}
}

// mergePoint adds a's addresses to point n, creating it if needed.
func (b *builder) mergePoint(n int, a *addressClause) model.Point {
	p, ok := b.st.Points[n]
	if !ok {
		p = model.Point{Number: n, LockAddressOffset: b.st.LockOffset}
	}
	p.StraightAddresses = appendNew(p.StraightAddresses, a.straight...)
	p.DivergingAddresses = appendNew(p.DivergingAddresses, a.diverging...)
	if a.hasLockOffset {
		p.LockAddressOffset = a.lockOffset
	}
	if len(a.subPoints) > 0 {
		subs := make(map[int]byte, len(p.SubPoints)+len(a.subPoints))
		for k, v := range p.SubPoints {
			subs[k] = v
		}
		for k, v := range a.subPoints {
			if k < 0 {
				k = -k
			}
			subs[k] = v
		}
		p.SubPoints = subs
	}
	return p
}

func appendNew(dst []int, xs ...int) []int {
	for _, x := range xs {
		if !slices.Contains(dst, x) {
			dst = append(dst, x)
		}
	}
	return dst
}

func (b *builder) signals() {
	for _, ls := range b.doc.signals {
		def := ls.item.def
		if _, ok := b.st.Graph.Node(def.Coord); !ok {
			b.warn(ls.line, "signal %s: %s is not on a track", def.Name, def.Coord)
		}
		if n, ok := def.Number(); ok {
			if _, dup := b.st.Signal(n); dup {
				b.warn(ls.line, "duplicate signal %d", n)
				continue
			}
		}
		b.st.Signals = append(b.st.Signals, def)
	}
}

func (b *builder) annotations() {
	for _, ll := range b.doc.labels {
		b.st.Labels = append(b.st.Labels, ll.item.def)
	}
	for _, lg := range b.doc.gaps {
		def := lg.item.def
		if def.OnLink {
			l, ok := b.st.Graph.Link(def.Coord, def.End)
			if !ok {
				b.warn(lg.line, "gap: no track between %s and %s", def.Coord, def.End)
			} else {
				l.HasGap = true
			}
		}
		b.st.Gaps = append(b.st.Gaps, def)
	}
}

type turntableBank struct {
	line
	from, to  int
	hasRange  bool
	offset    int
	hasOffset bool
}

func (b *builder) turntable() {
	var banks []*turntableBank
	last := func() *turntableBank {
		if len(banks) == 0 {
			return nil
		}
		return banks[len(banks)-1]
	}
	for _, kv := range b.doc.turntable {
		switch strings.ToLower(kv.item.key) {
		case "tracks":
			lo, hi, ok := strings.Cut(kv.item.value, "-")
			from, err1 := strconv.Atoi(strings.TrimSpace(lo))
			to, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if !ok || err1 != nil || err2 != nil || from <= 0 || to < from {
				b.warn(kv.line, "Tracks: expected START-END, got %q", kv.item.value)
				continue
			}
			bank := last()
			if bank == nil || bank.hasRange {
				bank = &turntableBank{line: kv.line}
				banks = append(banks, bank)
			}
			bank.from, bank.to, bank.hasRange = from, to, true
		case "offset":
			n, err := strconv.Atoi(kv.item.value)
			if err != nil {
				b.warn(kv.line, "Offset: %w", err)
				continue
			}
			bank := last()
			if bank == nil || bank.hasOffset {
				bank = &turntableBank{line: kv.line}
				banks = append(banks, bank)
			}
			bank.offset, bank.hasOffset = n, true
		default:
			b.warn(kv.line, "unknown turntable setting %q", kv.item.key)
		}
	}
	for _, bank := range banks {
		if !bank.hasRange {
			b.warn(bank.line, "turntable offset without tracks")
			continue
		}
		for t := bank.from; t <= bank.to; t++ {
			if _, dup := b.st.TurntableTracks[t]; dup {
				b.warn(bank.line, "duplicate turntable track %d", t)
				continue
			}
			b.st.TurntableTracks[t] = t + bank.offset
		}
	}
}

func (b *builder) translations() {
	for _, lt := range b.doc.translations {
		b.st.Translations[lt.item.key] = lt.item.values
	}
}
