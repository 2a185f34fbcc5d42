package streamclient

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserSingleEvent(t *testing.T) {
	p := newParser(strings.NewReader("event: scan\ndata: {\"ok\":true}\n\n"))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "scan", msg.Event)
	assert.Equal(t, `{"ok":true}`, msg.Data)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParserSkipsHeartbeats(t *testing.T) {
	stream := ": heartbeat\n\n" +
		": heartbeat\n\n" +
		"event: shift_update\ndata: {}\n\n"
	p := newParser(strings.NewReader(stream))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "shift_update", msg.Event)
}

func TestParserMultiLineData(t *testing.T) {
	p := newParser(strings.NewReader("data: line1\ndata: line2\n\n"))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", msg.Data)
}

func TestParserCRLF(t *testing.T) {
	p := newParser(strings.NewReader("event: scan\r\ndata: x\r\n\r\n"))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "scan", msg.Event)
	assert.Equal(t, "x", msg.Data)
}

func TestParserIgnoresUnknownFields(t *testing.T) {
	p := newParser(strings.NewReader("id: 7\nretry: 100\nevent: scan\ndata: x\n\n"))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "scan", msg.Event)
	assert.Equal(t, "x", msg.Data)
}

func TestParserMultipleEvents(t *testing.T) {
	stream := "event: a\ndata: 1\n\nevent: b\ndata: 2\n\n"
	p := newParser(strings.NewReader(stream))

	msg, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Event)

	msg, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", msg.Event)
	assert.Equal(t, "2", msg.Data)
}
