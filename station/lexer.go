package station

import (
	"errors"
	"fmt"
	"strconv"

	"nyiyui.ca/hato/rendo/layout"
)

// scanner reads one line of a station description byte by byte.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

func (s *scanner) eof() bool {
	s.skipSpace()
	return s.pos >= len(s.src)
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

// peek returns the next non-space byte, or 0 at the end.
func (s *scanner) peek() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// peekRaw returns the next byte without skipping spaces.
func (s *scanner) peekRaw() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// accept consumes b if it is next.
func (s *scanner) accept(b byte) bool {
	if s.peek() == b {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) expect(b byte) error {
	if !s.accept(b) {
		return s.errorf("expected %q", b)
	}
	return nil
}

func (s *scanner) errorf(format string, a ...interface{}) error {
	return fmt.Errorf("col %d: %s", s.pos+1, fmt.Sprintf(format, a...))
}

// until consumes and returns everything up to (not including) the first byte in stops.
func (s *scanner) until(stops string) string {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		for i := 0; i < len(stops); i++ {
			if c == stops[i] {
				return s.src[start:s.pos]
			}
		}
		s.pos++
	}
	return s.src[start:]
}

// rest consumes the remainder of the line.
func (s *scanner) rest() string {
	r := s.src[s.pos:]
	s.pos = len(s.src)
	return r
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isLetter(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }

var errNoNumber = errors.New("expected a number")

// uint scans unsigned decimal digits.
func (s *scanner) uint() (int, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return 0, fmt.Errorf("col %d: %w", start+1, errNoNumber)
	}
	n, err := strconv.Atoi(s.src[start:s.pos])
	if err != nil {
		return 0, s.errorf("%s", err)
	}
	return n, nil
}

// int scans an optionally negative decimal number.
func (s *scanner) int() (int, error) {
	neg := s.accept('-')
	n, err := s.uint()
	if neg {
		n = -n
	}
	return n, err
}

// coord scans ROW.COL.
func (s *scanner) coord() (layout.Coord, error) {
	r, err := s.uint()
	if err != nil {
		return layout.Coord{}, fmt.Errorf("coordinate row: %w", err)
	}
	if s.peekRaw() != '.' {
		return layout.Coord{}, s.errorf("coordinate: expected '.'")
	}
	s.pos++
	if !isDigit(s.peekRaw()) {
		return layout.Coord{}, s.errorf("coordinate column: %s", errNoNumber)
	}
	c, err := s.uint()
	if err != nil {
		return layout.Coord{}, fmt.Errorf("coordinate column: %w", err)
	}
	return layout.Coord{Row: r, Col: c}, nil
}

// address scans a signed hardware address with an optional one-letter sub-point suffix.
func (s *scanner) address() (addr int, sub byte, err error) {
	addr, err = s.int()
	if err != nil {
		return 0, 0, fmt.Errorf("address: %w", err)
	}
	if c := s.peekRaw(); isLetter(c) {
		sub = c
		s.pos++
	}
	return addr, sub, nil
}
