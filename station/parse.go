package station

import (
	"bufio"
	"fmt"
	"strings"
)

// document is the lexed form of all sources.
type document struct {
	name         string
	tracks       []lexed[trackItem]
	points       []lexed[pointItem]
	signals      []lexed[signalItem]
	labels       []lexed[labelItem]
	gaps         []lexed[gapItem]
	settings     []lexed[keyValueItem]
	turntable    []lexed[keyValueItem]
	translations []lexed[translationItem]
	routes       []lexed[routeItem]
	warnings     []Warning
}

type lexed[T any] struct {
	line
	item T
}

func add[T any](doc *document, dst *[]lexed[T], l line, item T, err error) {
	if err != nil {
		doc.warnings = append(doc.warnings, l.warn(err))
		return
	}
	*dst = append(*dst, lexed[T]{l, item})
}

// Parse parses the sources, in order, as one station description. Malformed lines are skipped
// and reported in Station.Warnings.
func Parse(srcs ...Source) *Station {
	doc := new(document)
	for _, src := range srcs {
		doc.lex(src)
	}
	b := builder{st: newStation(), doc: doc}
	b.build()
	return b.st
}

func (doc *document) lex(src Source) {
	sc := bufio.NewScanner(strings.NewReader(src.Text))
	section := SectionTracks
	seenHeader := false
	seenContent := false
	num := 0
	for sc.Scan() {
		num++
		text := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if text == "" || strings.HasPrefix(text, "'") {
			continue
		}
		l := line{source: src.Name, num: num, section: section, text: text}
		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			seenHeader = true
			name := strings.TrimSpace(text[1 : len(text)-1])
			s, ok := sectionByName(name)
			if !ok {
				doc.warnings = append(doc.warnings, l.warn(fmt.Errorf("unknown section %q, reading as %s", name, SectionTracks)))
				s = SectionTracks
			}
			section = s
			continue
		}
		if !seenHeader && !seenContent && !isDigit(text[0]) {
			seenContent = true
			if doc.name == "" {
				doc.name = text
			}
			continue
		}
		seenContent = true
		doc.lexLine(l)
	}
	if err := sc.Err(); err != nil {
		doc.warnings = append(doc.warnings, Warning{Source: src.Name, Line: num, Reason: err.Error()})
	}
}

func (doc *document) lexLine(l line) {
	switch l.section {
	case SectionTracks:
		it, err := lexTrack(l.text)
		add(doc, &doc.tracks, l, it, err)
	case SectionPoints:
		it, err := lexPoint(l.text)
		add(doc, &doc.points, l, it, err)
	case SectionSignals:
		it, err := lexSignal(l.text)
		add(doc, &doc.signals, l, it, err)
	case SectionLabels:
		it, err := lexLabel(l.text)
		add(doc, &doc.labels, l, it, err)
	case SectionGaps:
		it, err := lexGap(l.text)
		add(doc, &doc.gaps, l, it, err)
	case SectionSettings:
		it, err := lexKeyValue(l.text)
		add(doc, &doc.settings, l, it, err)
	case SectionTurntable:
		it, err := lexKeyValue(l.text)
		add(doc, &doc.turntable, l, it, err)
	case SectionTranslations:
		it, err := lexTranslation(l.text)
		add(doc, &doc.translations, l, it, err)
	case SectionRoutes:
		it, err := lexRoute(l.text)
		add(doc, &doc.routes, l, it, err)
	default:
		panic(fmt.Sprintf("unknown section %s", l.section))
	}
}
