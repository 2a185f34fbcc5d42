package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const heartbeatInterval = 15 * time.Second

// streamEvents serves the live update stream. Each connection owns one
// bounded hub queue; a viewer that cannot keep up misses events and
// re-syncs from /api/status, it never stalls the producers.
// GET /api/events
func (s *Server) streamEvents(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	id, events := s.hub.Subscribe()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.hub.Unsubscribe(id)

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(evt.Data)
				if err != nil {
					s.log.Error("event marshal failed", "event", evt.Type, "err", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					// Client went away; Unsubscribe drops the queue.
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
