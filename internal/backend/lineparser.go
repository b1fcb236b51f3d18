package backend

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// DataPrefix marks an event line in the chunked protocol.
const DataPrefix = "data: "

// LineParser turns raw body chunks of the chunked protocol into events.
// Bytes after the last newline are carried over to the next Feed, so lines
// and multi-byte runes may be split across reads. Lines without the prefix
// or with an unparsable payload are skipped.
type LineParser struct {
	carry  []byte
	logger *slog.Logger
}

// NewLineParser creates a parser. A nil logger uses slog.Default().
func NewLineParser(logger *slog.Logger) *LineParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineParser{logger: logger}
}

// Feed consumes chunk and returns the events completed by it, in order.
func (p *LineParser) Feed(chunk []byte) []Event {
	p.carry = append(p.carry, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(p.carry, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(p.carry[:idx], []byte("\r"))
		if ev, ok := p.parseLine(line); ok {
			events = append(events, ev)
		}
		p.carry = p.carry[idx+1:]
	}

	// Release the backing array once everything is consumed.
	if len(p.carry) == 0 {
		p.carry = nil
	}
	return events
}

// Pending returns the unterminated tail held for the next Feed.
func (p *LineParser) Pending() string {
	return string(p.carry)
}

func (p *LineParser) parseLine(line []byte) (Event, bool) {
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, false
	}
	payload, ok := bytes.CutPrefix(line, []byte(DataPrefix))
	if !ok {
		p.logger.Debug("stream_line_skipped", "reason", "missing_prefix", "line", string(line))
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		p.logger.Debug("stream_line_skipped", "reason", "invalid_json", "error", err)
		return Event{}, false
	}

	switch ev.Type {
	case EventStatus, EventToken, EventDone:
		return ev, true
	default:
		p.logger.Debug("stream_line_skipped", "reason", "unknown_type", "type", string(ev.Type))
		return Event{}, false
	}
}
