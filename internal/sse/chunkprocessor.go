package sse

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/gatewayerr"
)

// TransformFunc converts one parsed upstream Event, tagged with the client
// and upstream dialects, into zero-or-one canonical StreamEvents. A nil
// result with a nil error means the event carried nothing worth forwarding
// (e.g. a pure comment).
type TransformFunc func(ev Event, client, upstream dialect.Kind) (*dialect.StreamEvent, error)

// IncompleteJSON is returned by a TransformFunc to signal that ev.Raw was
// truncated mid-JSON-value and should be retried once more bytes arrive,
// rather than treated as a validation failure.
type IncompleteJSON struct{ Err error }

func (e *IncompleteJSON) Error() string { return "incomplete JSON: " + e.Err.Error() }
func (e *IncompleteJSON) Unwrap() error { return e.Err }

// NewIncompleteJSON wraps a JSON decode error as an IncompleteJSON trigger
// when it looks like truncation (EOF / unexpected EOF / unexpected end of
// JSON input), otherwise returns the error unchanged so the chunk processor
// treats it as "other" (propagate).
func NewIncompleteJSON(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &IncompleteJSON{Err: err}
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return &IncompleteJSON{Err: err}
	}
	return err
}

// ValidationError marks an event that should be skipped (not propagated,
// not retried) — an unsupported or malformed event type that the rest of
// the stream can proceed without.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// ChunkProcessor is the stateful, per-request triage engine that buffers
// incomplete SSE events across chunk boundaries. It holds at most one
// partially-received event's raw bytes across calls to Process.
type ChunkProcessor struct {
	Client   dialect.Kind
	Upstream dialect.Kind
	Transform TransformFunc

	pending []byte
}

// NewChunkProcessor constructs a ChunkProcessor for one request's lifetime.
func NewChunkProcessor(client, upstream dialect.Kind, tf TransformFunc) *ChunkProcessor {
	return &ChunkProcessor{Client: client, Upstream: upstream, Transform: tf}
}

// Process consumes one chunk of upstream bytes, prepending any buffered
// partial event, and returns the canonical events produced plus any
// terminal error. On an incomplete-JSON signal for the last parsed event,
// that event's raw bytes are buffered for the next call and processing of
// this chunk stops there (events before it are still returned). Skip
// (*ValidationError) errors drop just that event and continue parsing the
// rest of the chunk. Any other error is propagated immediately.
func (p *ChunkProcessor) Process(chunk []byte) ([]dialect.StreamEvent, error) {
	buf := append(p.pending, chunk...)
	p.pending = nil

	events, remainder := ParseEvents(buf)
	var out []dialect.StreamEvent
	for i, ev := range events {
		se, err := p.Transform(ev, p.Client, p.Upstream)
		if err != nil {
			var incomplete *IncompleteJSON
			var validation *ValidationError
			switch {
			case errors.As(err, &incomplete):
				p.pending = append(p.pending, ev.Raw...)
				// Any events parsed after this one in the same chunk were
				// already blank-line-terminated and thus complete; but the
				// triage contract buffers only the incomplete event and
				// stops parsing further events in this chunk, so anything
				// after index i is intentionally not processed here.
				if i+1 < len(events) {
					var rest []byte
					for _, later := range events[i+1:] {
						rest = append(rest, later.Raw...)
						rest = append(rest, '\n', '\n')
					}
					p.pending = append(p.pending, rest...)
				}
				return out, nil
			case errors.As(err, &validation):
				continue
			default:
				return out, gatewayerr.StreamErr(err.Error())
			}
		}
		if se != nil {
			out = append(out, *se)
		}
	}
	p.pending = append(p.pending, remainder...)
	return out, nil
}
