package streamclient

import (
	"bufio"
	"io"
	"strings"
)

// Message is one server-sent event as received off the wire.
type Message struct {
	Event string
	Data  string
}

// parser incrementally decodes a text/event-stream body. It understands
// the subset the verifier emits: "event:" and "data:" fields, comment
// lines, and blank-line dispatch. Multi-line data fields are joined with
// newlines per the SSE framing rules.
type parser struct {
	r *bufio.Reader

	event string
	data  []string
}

func newParser(r io.Reader) *parser {
	return &parser{r: bufio.NewReader(r)}
}

// Next blocks until a complete message arrives or the stream ends.
func (p *parser) Next() (*Message, error) {
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(p.data) == 0 && p.event == "" {
				continue
			}
			msg := &Message{Event: p.event, Data: strings.Join(p.data, "\n")}
			p.event, p.data = "", nil
			if msg.Data == "" {
				// Heartbeats and bare event lines carry nothing to deliver.
				continue
			}
			return msg, nil
		case strings.HasPrefix(line, ":"):
			// Comment, typically the heartbeat. Resets nothing.
			continue
		case strings.HasPrefix(line, "event:"):
			p.event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			p.data = append(p.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Unknown field names are ignored per the framing rules.
		}
	}
}
