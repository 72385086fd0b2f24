package station

import (
	"errors"
	"fmt"
	"strings"

	"nyiyui.ca/hato/rendo/layout"
	"nyiyui.ca/hato/rendo/model"
)

// Section is a named part of a station description.
type Section string

const (
	SectionTracks       Section = "Tracks"
	SectionPoints       Section = "Points"
	SectionSignals      Section = "Signals"
	SectionLabels       Section = "Labels"
	SectionGaps         Section = "Gaps"
	SectionSettings     Section = "Settings"
	SectionTranslations Section = "Translations"
	SectionTurntable    Section = "Turntable"
	SectionRoutes       Section = "Routes"
)

var sections = []Section{
	SectionTracks, SectionPoints, SectionSignals, SectionLabels, SectionGaps,
	SectionSettings, SectionTranslations, SectionTurntable, SectionRoutes,
}

func sectionByName(name string) (Section, bool) {
	for _, s := range sections {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return "", false
}

// line is where an item came from.
type line struct {
	source  string
	num     int
	section Section
	text    string
}

func (l line) warn(err error) Warning {
	return Warning{Source: l.source, Line: l.num, Section: l.section, Text: l.text, Reason: err.Error()}
}

type trackCoord struct {
	c         layout.Coord
	necessary bool
}

type trackItem struct {
	coords []trackCoord
}

type pointSpec struct {
	label     string
	at        layout.Coord
	direction layout.Direction
}

type addressClause struct {
	straight, diverging []int
	subPoints           map[int]byte
	lockOffset          int
	hasLockOffset       bool
}

type pointItem struct {
	// defs has one entry for a single point and two for a crossover.
	defs     []layout.PointDefinition
	straight bool
	addr     *addressClause
}

type signalItem struct {
	def layout.SignalDefinition
}

type labelItem struct {
	def layout.LabelDefinition
}

type gapItem struct {
	def layout.GapDefinition
}

type keyValueItem struct {
	key, value string
}

type translationItem struct {
	key    string
	values []string
}

type pointToken struct {
	number   int
	position model.Position
	flank    bool
}

type routeItem struct {
	from, to int
	// chain is set for a composite route and includes both ends.
	chain   []int
	tokens  []pointToken
	address int
}

var (
	errTrailing  = errors.New("trailing characters")
	errDirection = errors.New("ambiguous or missing direction arrow")
)

func trailing(s *scanner) error {
	if !s.eof() {
		return fmt.Errorf("%w: %q", errTrailing, s.rest())
	}
	return nil
}

// lexTrack parses COORD[!]-COORD[!]-...
func lexTrack(src string) (trackItem, error) {
	s := newScanner(src)
	var it trackItem
	for {
		c, err := s.coord()
		if err != nil {
			return trackItem{}, err
		}
		tc := trackCoord{c: c}
		if s.accept('!') {
			tc.necessary = true
		}
		it.coords = append(it.coords, tc)
		if !s.accept('-') {
			break
		}
	}
	if len(it.coords) < 2 {
		return trackItem{}, errors.New("a track needs at least two coordinates")
	}
	return it, trailing(s)
}

// lexPointLabel parses ([<]LABEL[>]).
func lexPointLabel(s *scanner) (label string, dir layout.Direction, err error) {
	if err := s.expect('('); err != nil {
		return "", false, err
	}
	left := s.accept('<')
	label = strings.TrimSpace(s.until("<>)"))
	right := s.accept('>')
	if err := s.expect(')'); err != nil {
		return "", false, err
	}
	if label == "" {
		return "", false, errors.New("empty point label")
	}
	if left == right {
		return "", false, fmt.Errorf("point %s: %w", label, errDirection)
	}
	return label, layout.Direction(right), nil
}

// lexPoint parses
//
//	COORD(LABEL)-COORD[+][@ADDRESSES]
//	COORD(LABEL)-COORD(LABEL)[+][@ADDRESSES]
func lexPoint(src string) (pointItem, error) {
	s := newScanner(src)
	var specs []pointSpec
	c1, err := s.coord()
	if err != nil {
		return pointItem{}, err
	}
	label, dir, err := lexPointLabel(s)
	if err != nil {
		return pointItem{}, err
	}
	specs = append(specs, pointSpec{label, c1, dir})
	if err := s.expect('-'); err != nil {
		return pointItem{}, err
	}
	c2, err := s.coord()
	if err != nil {
		return pointItem{}, err
	}
	if s.peek() == '(' {
		label, dir, err := lexPointLabel(s)
		if err != nil {
			return pointItem{}, err
		}
		specs = append(specs, pointSpec{label, c2, dir})
	}
	var it pointItem
	it.straight = s.accept('+')
	ends := []layout.Coord{c2, c1}
	for i, spec := range specs {
		it.defs = append(it.defs, layout.PointDefinition{
			Label:                 spec.label,
			SwitchPoint:           spec.at,
			ExplicitEnd:           ends[i],
			Direction:             spec.direction,
			ExplicitEndIsStraight: it.straight,
		})
	}
	if s.accept('@') {
		it.addr, err = lexAddressClause(s)
		if err != nil {
			return pointItem{}, err
		}
	}
	return it, trailing(s)
}

// lexAddressList parses ADDR[,ADDR...] where ADDR is [-]DIGITS[LETTER].
func lexAddressList(s *scanner, subs map[int]byte) ([]int, error) {
	var res []int
	for {
		a, sub, err := s.address()
		if err != nil {
			return nil, err
		}
		if a == 0 {
			return nil, errors.New("address 0")
		}
		if sub != 0 {
			subs[a] = sub
		}
		res = append(res, a)
		if !s.accept(',') {
			return res, nil
		}
	}
}

// lexAddressClause parses the part after '@': either LIST or (LIST)±(LIST)±, then [;LOCKOFFSET].
func lexAddressClause(s *scanner) (*addressClause, error) {
	a := &addressClause{subPoints: map[int]byte{}}
	if s.peek() == '(' {
		seen := map[model.Position]bool{}
		for s.accept('(') {
			list, err := lexAddressList(s, a.subPoints)
			if err != nil {
				return nil, err
			}
			if err := s.expect(')'); err != nil {
				return nil, err
			}
			pos, ok := model.PositionFromSign(s.peek())
			if !ok {
				return nil, s.errorf("address group needs a trailing + or -")
			}
			s.pos++
			if seen[pos] {
				return nil, fmt.Errorf("duplicate %s address group", pos)
			}
			seen[pos] = true
			if pos == model.PositionStraight {
				a.straight = list
			} else {
				a.diverging = list
			}
		}
		if len(seen) != 2 {
			return nil, errors.New("address groups need both + and -")
		}
	} else {
		list, err := lexAddressList(s, a.subPoints)
		if err != nil {
			return nil, err
		}
		a.straight = list
		a.diverging = list
	}
	if s.accept(';') {
		n, err := s.uint()
		if err != nil {
			return nil, fmt.Errorf("lock offset: %w", err)
		}
		a.lockOffset = n
		a.hasLockOffset = true
	}
	return a, nil
}

// lexSignal parses COORD:[<]NAME[[LABEL]][>][:TYPE][@ADDR[;FEEDBACK]].
func lexSignal(src string) (signalItem, error) {
	s := newScanner(src)
	c, err := s.coord()
	if err != nil {
		return signalItem{}, err
	}
	if err := s.expect(':'); err != nil {
		return signalItem{}, err
	}
	def := layout.SignalDefinition{Coord: c, DrivesRight: true}
	left := s.accept('<')
	def.Name = strings.TrimSpace(s.until("[>:@"))
	if def.Name == "" {
		return signalItem{}, errors.New("empty signal name")
	}
	if s.accept('[') {
		def.Label = strings.TrimSpace(s.until("]"))
		if err := s.expect(']'); err != nil {
			return signalItem{}, err
		}
	}
	right := s.accept('>')
	if left && right {
		return signalItem{}, fmt.Errorf("signal %s: %w", def.Name, errDirection)
	}
	def.DrivesRight = !left
	if s.accept(':') {
		marker := strings.TrimSpace(s.until("@"))
		typ, ok := layout.SignalTypeFromMarker(marker)
		if !ok {
			return signalItem{}, fmt.Errorf("unknown signal type %q", marker)
		}
		def.Type = typ
	}
	if s.accept('@') {
		if def.Address, err = s.uint(); err != nil {
			return signalItem{}, fmt.Errorf("signal address: %w", err)
		}
		if s.accept(';') {
			if def.FeedbackAddress, err = s.uint(); err != nil {
				return signalItem{}, fmt.Errorf("feedback address: %w", err)
			}
		}
	}
	return signalItem{def}, trailing(s)
}

// lexLabel parses COORD:TEXT.
func lexLabel(src string) (labelItem, error) {
	s := newScanner(src)
	c, err := s.coord()
	if err != nil {
		return labelItem{}, err
	}
	if err := s.expect(':'); err != nil {
		return labelItem{}, err
	}
	return labelItem{layout.LabelDefinition{Coord: c, Text: strings.TrimSpace(s.rest())}}, nil
}

// lexGap parses COORD or COORD-COORD.
func lexGap(src string) (gapItem, error) {
	s := newScanner(src)
	c, err := s.coord()
	if err != nil {
		return gapItem{}, err
	}
	def := layout.GapDefinition{Coord: c}
	if s.accept('-') {
		if def.End, err = s.coord(); err != nil {
			return gapItem{}, err
		}
		def.OnLink = true
	}
	return gapItem{def}, trailing(s)
}

// lexKeyValue parses KEY:VALUE.
func lexKeyValue(src string) (keyValueItem, error) {
	key, value, ok := strings.Cut(src, ":")
	if !ok {
		return keyValueItem{}, errors.New("expected KEY:VALUE")
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return keyValueItem{}, errors.New("empty key")
	}
	return keyValueItem{key, value}, nil
}

// lexTranslation parses KEY;TEXT[;TEXT...].
func lexTranslation(src string) (translationItem, error) {
	parts := strings.Split(src, ";")
	if len(parts) < 2 {
		return translationItem{}, errors.New("expected KEY;TEXT")
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return translationItem{}, errors.New("empty key")
	}
	values := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		values = append(values, strings.TrimSpace(p))
	}
	return translationItem{key, values}, nil
}

// lexRoute parses FROM-TO[:PAYLOAD][@ADDRESS] where PAYLOAD is a signal chain A.B.C or a
// comma-separated list of [x]N± point tokens.
func lexRoute(src string) (routeItem, error) {
	s := newScanner(src)
	var it routeItem
	var err error
	if it.from, err = s.uint(); err != nil {
		return routeItem{}, fmt.Errorf("from signal: %w", err)
	}
	if err := s.expect('-'); err != nil {
		return routeItem{}, err
	}
	if it.to, err = s.uint(); err != nil {
		return routeItem{}, fmt.Errorf("to signal: %w", err)
	}
	if it.from == it.to {
		return routeItem{}, errors.New("route starts and ends at the same signal")
	}
	if s.accept(':') {
		payload := strings.TrimSpace(s.until("@"))
		if err := lexRoutePayload(&it, payload); err != nil {
			return routeItem{}, err
		}
	}
	if s.accept('@') {
		if it.address, err = s.uint(); err != nil {
			return routeItem{}, fmt.Errorf("route address: %w", err)
		}
	}
	return it, trailing(s)
}

func lexRoutePayload(it *routeItem, payload string) error {
	if payload == "" {
		return nil
	}
	if strings.ContainsAny(payload, "+-") {
		for _, tok := range strings.Split(payload, ",") {
			pt, err := lexPointToken(strings.TrimSpace(tok))
			if err != nil {
				return err
			}
			it.tokens = append(it.tokens, pt)
		}
		return nil
	}
	s := newScanner(payload)
	for {
		n, err := s.uint()
		if err != nil {
			return fmt.Errorf("signal chain: %w", err)
		}
		it.chain = append(it.chain, n)
		if !s.accept('.') {
			break
		}
	}
	if err := trailing(s); err != nil {
		return err
	}
	if it.chain[0] != it.from {
		it.chain = append([]int{it.from}, it.chain...)
	}
	if it.chain[len(it.chain)-1] != it.to {
		it.chain = append(it.chain, it.to)
	}
	if len(it.chain) < 3 {
		return errors.New("signal chain has no intermediate signal")
	}
	return nil
}

// lexPointToken parses [x]N+ or [x]N-.
func lexPointToken(tok string) (pointToken, error) {
	s := newScanner(tok)
	var pt pointToken
	if s.accept('x') || s.accept('X') {
		pt.flank = true
	}
	n, err := s.uint()
	if err != nil {
		return pointToken{}, fmt.Errorf("point token %q: %w", tok, err)
	}
	if n == 0 {
		return pointToken{}, fmt.Errorf("point token %q: point 0", tok)
	}
	pos, ok := model.PositionFromSign(s.peek())
	if !ok {
		return pointToken{}, fmt.Errorf("point token %q: expected + or -", tok)
	}
	s.pos++
	pt.number = n
	pt.position = pos
	return pt, trailing(s)
}
