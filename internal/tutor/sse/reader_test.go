package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader yields the underlying data in fixed-size pieces so tests can
// force events to straddle read boundaries.
type chunkReader struct {
	data []byte
	size int
	off  int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.off >= len(c.data) {
		return 0, io.EOF
	}
	end := c.off + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.off:end])
	c.off += n
	return n, nil
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, *ev)
	}
}

const sampleStream = "event: delta\ndata: {\"text\":\"Go is \"}\n\n" +
	": keep-alive\n\n" +
	"event: delta\ndata: {\"text\":\"a language\"}\n\n" +
	"data: plain message\n\n" +
	"data: [DONE]\n\n"

func TestReader_ParsesEventStream(t *testing.T) {
	events := readAll(t, NewReader(strings.NewReader(sampleStream)))

	require.Len(t, events, 3)
	assert.Equal(t, Event{Name: "delta", Data: `{"text":"Go is "}`}, events[0])
	assert.Equal(t, Event{Name: "delta", Data: `{"text":"a language"}`}, events[1])
	assert.Equal(t, Event{Name: "message", Data: "plain message"}, events[2])
}

func TestReader_ChunkBoundariesDoNotChangeResult(t *testing.T) {
	want := readAll(t, NewReader(strings.NewReader(sampleStream)))

	for _, size := range []int{1, 2, 3, 5, 7, 16, 64, len(sampleStream)} {
		r := NewReader(&chunkReader{data: []byte(sampleStream), size: size})
		got := readAll(t, r)
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestReader_CRLFLines(t *testing.T) {
	stream := "event: delta\r\ndata: hello\r\n\r\ndata: [DONE]\r\n\r\n"
	events := readAll(t, NewReader(strings.NewReader(stream)))

	require.Len(t, events, 1)
	assert.Equal(t, Event{Name: "delta", Data: "hello"}, events[0])
}

func TestReader_MultipleDataLinesJoined(t *testing.T) {
	stream := "data: line one\ndata: line two\n\n"
	events := readAll(t, NewReader(strings.NewReader(stream)))

	require.Len(t, events, 1)
	assert.Equal(t, "line one\nline two", events[0].Data)
}

func TestReader_StreamEndWithoutTrailingBlankLine(t *testing.T) {
	stream := "event: delta\ndata: tail"
	events := readAll(t, NewReader(strings.NewReader(stream)))

	require.Len(t, events, 1)
	assert.Equal(t, Event{Name: "delta", Data: "tail"}, events[0])
}

func TestReader_DoneSentinelStopsStream(t *testing.T) {
	stream := "data: [DONE]\n\ndata: after\n\n"
	r := NewReader(strings.NewReader(stream))

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)

	// Everything after the sentinel stays unread.
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_MissingSpaceAfterColon(t *testing.T) {
	stream := "data:no-space\n\n"
	events := readAll(t, NewReader(strings.NewReader(stream)))

	require.Len(t, events, 1)
	assert.Equal(t, "no-space", events[0].Data)
}
