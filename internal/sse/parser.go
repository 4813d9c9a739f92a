// Package sse implements the SSE pipeline (C3): a restartable event parser,
// a stateful chunk processor with incomplete/skip/propagate transform
// triage, and per-client-dialect stream buffers that synthesize lifecycle
// correctness (Anthropic's envelope, the Responses API's lifecycle).
package sse

import "bytes"

// Event is one parsed SSE event: an optional event name, optional data
// payload (joined from possibly-multiple "data:" lines with "\n"), and the
// raw bytes it was parsed from (used to re-buffer on incomplete-JSON
// retries).
type Event struct {
	Name string
	Data string
	Raw  []byte
}

// ParseEvents splits buf into complete SSE events, returning the parsed
// events plus any trailing incomplete bytes (an event without a terminating
// blank line) for the caller to prepend to the next chunk. Never panics on
// partial input: a buffer containing no blank-line-terminated event simply
// returns zero events and the whole buffer as remainder.
func ParseEvents(buf []byte) (events []Event, remainder []byte) {
	for {
		sep := findEventSeparator(buf)
		if sep < 0 {
			return events, buf
		}
		raw := buf[:sep]
		buf = buf[advancePastSeparator(buf, sep):]
		if ev, ok := parseOneEvent(raw); ok {
			events = append(events, ev)
		}
	}
}

// findEventSeparator returns the index of the first blank-line separator
// ("\n\n" or "\r\n\r\n"), or -1 if none is present yet.
func findEventSeparator(buf []byte) int {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))
	if crlf >= 0 && (lf < 0 || crlf < lf) {
		return crlf
	}
	return lf
}

func advancePastSeparator(buf []byte, sepStart int) int {
	rest := buf[sepStart:]
	if bytes.HasPrefix(rest, []byte("\r\n\r\n")) {
		return sepStart + 4
	}
	if bytes.HasPrefix(rest, []byte("\n\n")) {
		return sepStart + 2
	}
	return sepStart + 1
}

// parseOneEvent parses a single event's raw line block (no trailing blank
// line) into an Event. Comment lines (starting with ':') and unrecognized
// fields are ignored. Returns ok=false for a block with no data and no
// event name (nothing worth delivering).
func parseOneEvent(raw []byte) (Event, bool) {
	lines := bytes.Split(raw, []byte("\n"))
	var name string
	var dataLines []string
	for _, line := range lines {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value := splitField(line)
		switch field {
		case "event":
			name = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}
	if name == "" && len(dataLines) == 0 {
		return Event{}, false
	}
	data := joinLines(dataLines)
	return Event{Name: name, Data: data, Raw: append([]byte(nil), raw...)}, true
}

func splitField(line []byte) (field, value string) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), ""
	}
	field = string(line[:i])
	value = string(line[i+1:])
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
