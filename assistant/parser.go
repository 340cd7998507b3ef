package assistant

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atriumlabs/atrium"
)

// Parser assembles discrete [atrium.Event] values from the stream's
// line-oriented frame format. It is resilient to arbitrary chunk
// boundaries, including boundaries that split a line in the middle: only
// the unprocessed tail (everything after the last complete line) is
// retained across calls to Feed, and an event is only emitted once its
// terminating blank line (or end of stream, via Flush) has been seen.
//
// A Parser is session-scoped: the transport creates a fresh one for each
// stream so that late bytes from a superseded session can never leak into
// a new one.
type Parser struct {
	log  zerolog.Logger
	tail string

	// Pending event being assembled. kind is set by an "event:" line;
	// segments collects the values of its "data:" lines.
	kind     atrium.EventKind
	haveKind bool
	segments []string
}

// NewParser returns a Parser that records frame diagnostics on log.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Feed appends b to the retained tail, decodes the complete lines, and
// returns the events finalized by them, in arrival order.
func (p *Parser) Feed(b []byte) []atrium.Event {
	text := p.tail + string(b)

	var events []atrium.Event
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(text[:i], "\r")
		text = text[i+1:]
		if evt, ok := p.processLine(line); ok {
			events = append(events, evt)
		}
	}
	p.tail = text
	return events
}

// Flush emits the trailing event whose terminator was end of stream rather
// than a blank line. Call it once, after the final Feed.
func (p *Parser) Flush() (atrium.Event, bool) {
	// A final line without a trailing newline still counts.
	if p.tail != "" {
		line := strings.TrimSuffix(p.tail, "\r")
		p.tail = ""
		if evt, ok := p.processLine(line); ok {
			return evt, true
		}
	}
	if len(p.segments) > 0 {
		return p.finalize(), true
	}
	return atrium.Event{}, false
}

// processLine applies one decoded line to the pending event. It returns an
// event when the line finalized one.
func (p *Parser) processLine(line string) (atrium.Event, bool) {
	switch {
	case line == "":
		// Blank line terminates the pending event, but only if it has
		// data; a blank line straight after an "event:" line leaves the
		// pending kind in place.
		if len(p.segments) > 0 {
			return p.finalize(), true
		}
		return atrium.Event{}, false

	case strings.HasPrefix(line, "event:"):
		// A kind line with data pending finalizes the previous event. A
		// kind line immediately after another kind line folds into the
		// new one instead of emitting an empty event.
		var evt atrium.Event
		emitted := false
		if len(p.segments) > 0 {
			evt = p.finalize()
			emitted = true
		}
		p.kind = atrium.EventKind(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		p.haveKind = true
		return evt, emitted

	case strings.HasPrefix(line, "data:"):
		if !p.haveKind {
			p.log.Debug().Err(&atrium.ProtocolError{Line: line}).
				Msg("data line outside an event, skipping")
			return atrium.Event{}, false
		}
		p.segments = append(p.segments, trimFieldValue(strings.TrimPrefix(line, "data:")))
		return atrium.Event{}, false

	default:
		// Inside a data block, a line with no recognized prefix continues
		// the most recent data segment. The server relies on this for
		// multi-line payloads; they are not explicitly escaped.
		if len(p.segments) > 0 {
			p.segments[len(p.segments)-1] += "\n" + line
			return atrium.Event{}, false
		}
		p.log.Debug().Err(&atrium.ProtocolError{Line: line}).
			Msg("unrecognized line outside a data block, skipping")
		return atrium.Event{}, false
	}
}

// finalize joins the pending data segments into an event and clears the
// pending state. Metadata payloads are parsed as JSON; a parse failure is
// non-fatal and the event is still emitted with Meta left nil.
func (p *Parser) finalize() atrium.Event {
	evt := atrium.Event{
		Kind:    p.kind,
		Payload: strings.Join(p.segments, "\n"),
	}
	p.kind = ""
	p.haveKind = false
	p.segments = nil

	if evt.Kind == atrium.EventMetadata {
		var meta atrium.EventMeta
		if err := json.Unmarshal([]byte(evt.Payload), &meta); err != nil {
			p.log.Warn().Err(&atrium.ProtocolError{Line: evt.Payload, Err: err}).
				Msg("metadata payload did not parse")
		} else {
			evt.Meta = &meta
		}
	}
	return evt
}

// trimFieldValue strips the single space the protocol puts after the field
// colon. Further leading whitespace is payload.
func trimFieldValue(s string) string {
	return strings.TrimPrefix(s, " ")
}
