// Package sse implements an incremental reader for text/event-stream
// bodies. Parsing is line-based, so events arrive intact no matter how the
// transport chunks the stream.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// DoneSentinel is the terminal data token streamed by the upstream
// service before it closes a completion.
const DoneSentinel = "[DONE]"

// Event is one decoded server-sent event.
type Event struct {
	Name string
	Data string
}

// Reader decodes events from an event stream. It is not safe for
// concurrent use.
type Reader struct {
	sc   *bufio.Scanner
	done bool
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next event. It returns io.EOF once the stream ends or
// the done sentinel has been seen; any earlier transport error is passed
// through.
func (r *Reader) Next() (*Event, error) {
	if r.done {
		return nil, io.EOF
	}

	var name string
	var data []string

	flush := func() (*Event, bool) {
		if len(data) == 0 {
			name = ""
			return nil, false
		}
		ev := &Event{Name: name, Data: strings.Join(data, "\n")}
		if ev.Name == "" {
			ev.Name = "message"
		}
		return ev, true
	}

	for r.sc.Scan() {
		line := strings.TrimSuffix(r.sc.Text(), "\r")

		// Blank line dispatches the accumulated event.
		if line == "" {
			ev, ok := flush()
			if !ok {
				continue
			}
			if ev.Data == DoneSentinel {
				r.done = true
				return nil, io.EOF
			}
			return ev, nil
		}

		// Comment lines (keep-alives) carry nothing.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
		// id and retry fields are irrelevant to this client.
	}

	if err := r.sc.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a trailing blank line: dispatch what we have.
	r.done = true
	if ev, ok := flush(); ok && ev.Data != DoneSentinel {
		return ev, nil
	}
	return nil, io.EOF
}

// splitField separates "field: value", tolerating a missing space after
// the colon.
func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	value := line[i+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return line[:i], value
}
