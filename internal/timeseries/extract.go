package timeseries

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPosition  = errors.New("timeseries: invalid position")
	ErrInvalidValue     = errors.New("timeseries: invalid value")
	ErrInvalidTimestamp = errors.New("timeseries: invalid start timestamp")
)

type EventKind int

const (
	EventOpen EventKind = iota
	EventText
	EventClose
)

// Event is one XML parse event. Name carries the local element name for open
// and close events, Text the character data for text events.
type Event struct {
	Kind EventKind
	Name string
	Text string
}

// TokenSource yields XML parse events in document order. Next returns io.EOF
// after the last event.
type TokenSource interface {
	Next() (Event, error)
}

type decoderSource struct {
	dec *xml.Decoder
}

// NewDecoderSource adapts an encoding/xml decoder into a TokenSource.
// Namespace prefixes are dropped; whitespace-only character data between
// elements is not reported.
func NewDecoderSource(dec *xml.Decoder) TokenSource {
	return &decoderSource{dec: dec}
}

func (s *decoderSource) Next() (Event, error) {
	for {
		token, err := s.dec.Token()
		if err != nil {
			return Event{}, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			return Event{Kind: EventOpen, Name: t.Name.Local}, nil
		case xml.CharData:
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			return Event{Kind: EventText, Text: text}, nil
		case xml.EndElement:
			return Event{Kind: EventClose, Name: t.Name.Local}, nil
		}
	}
}

// extractState is the whole interpretation state of one pass: the last opened
// element, the in-progress period and the in-progress point. Period fields
// reset when a period container opens, point fields when a Point opens.
type extractState struct {
	element string

	start      string
	resolution string
	startSet   bool
	resSet     bool

	position int64
	value    float64
	posSet   bool
	valueSet bool
}

func (st *extractState) pointComplete() bool {
	return st.startSet && st.resSet && st.posSet && st.valueSet
}

// Extract runs a single streaming pass over an XML document and returns the
// per-resolution timestamp/value columns. valueTag names the element whose
// text is a point's numeric value (e.g. "price.amount"), periodTag the element
// delimiting a period block (e.g. "Period").
//
// A point missing any of start, resolution, position or value is skipped
// without error; malformed XML, an unparseable position, value or start, or a
// resolution outside the table aborts the pass with no partial result.
func Extract(xmlText, valueTag, periodTag string) (Rows, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlText))
	return ExtractFrom(NewDecoderSource(dec), valueTag, periodTag)
}

// ExtractFrom is Extract over an arbitrary event source.
func ExtractFrom(src TokenSource, valueTag, periodTag string) (Rows, error) {
	rows := make(Rows)
	var st extractState

	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}

		switch ev.Kind {
		case EventOpen:
			st.element = ev.Name
			switch ev.Name {
			case periodTag:
				st.startSet = false
				st.resSet = false
			case "Point":
				st.posSet = false
				st.valueSet = false
			}

		case EventText:
			switch st.element {
			case "start":
				st.start = ev.Text
				st.startSet = true
			case "resolution":
				st.resolution = ev.Text
				st.resSet = true
			case "position":
				position, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: %q", ErrInvalidPosition, ev.Text)
				}
				st.position = position
				st.posSet = true
			case valueTag:
				value, err := strconv.ParseFloat(strings.TrimSpace(ev.Text), 64)
				if err != nil {
					return nil, fmt.Errorf("%w: %q", ErrInvalidValue, ev.Text)
				}
				st.value = value
				st.valueSet = true
			}

		case EventClose:
			if ev.Name != "Point" || !st.pointComplete() {
				continue
			}
			start, err := parseStart(st.start)
			if err != nil {
				return nil, err
			}
			span, err := LookupResolution(st.resolution)
			if err != nil {
				return nil, err
			}
			ts := span.AddTo(start, int(st.position-1))
			rows.appendPoint(st.resolution, ts, st.value)
		}
	}
}

// parseStart normalizes a minute-precision start string to full seconds and
// parses it as an absolute instant.
func parseStart(raw string) (time.Time, error) {
	normalized, err := normalizeStart(raw)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return ts, nil
}

// normalizeStart supplies the seconds the source omits: inserted before a
// trailing "Z" or before an explicit offset. The input must carry exactly
// minute precision; a string that already has seconds would be corrupted by
// the patch, so it is rejected instead.
func normalizeStart(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !minutePrecision(trimmed) {
		return "", fmt.Errorf("%w: %q is not minute-precision", ErrInvalidTimestamp, raw)
	}
	if strings.HasSuffix(trimmed, "Z") {
		return trimmed[:len(trimmed)-1] + ":00Z", nil
	}
	t := strings.IndexByte(trimmed, 'T')
	if i := strings.LastIndexAny(trimmed, "+-"); i > t {
		return trimmed[:i] + ":00" + trimmed[i:], nil
	}
	return trimmed + ":00", nil
}

func minutePrecision(s string) bool {
	s = strings.TrimSuffix(s, "Z")
	t := strings.IndexByte(s, 'T')
	if t < 0 {
		return false
	}
	if i := strings.LastIndexAny(s, "+-"); i > t {
		s = s[:i]
	}
	return len(s)-t == len("T15:04")
}
