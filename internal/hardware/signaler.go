// Package hardware reduces the physical line signaling (stack lights,
// alarm relay, line-stop contactor) to a capability interface. The
// simulated controller is the default; it logs transitions and never
// fails, so the core behaves identically with or without real hardware.
package hardware

import (
	"log/slog"
	"sync"
	"time"
)

// Signaler is the hardware capability consumed by the verification engine.
// Every call must be safe as a no-op.
type Signaler interface {
	SignalPass()
	SignalFail()
	HaltLine()
	ResumeLine()
	AllOff()
}

// SimController mimics the relay board timings: the pass light clears
// itself after a second, the fail alarm after alarmDuration.
type SimController struct {
	alarmDuration time.Duration
	log           *slog.Logger

	mu        sync.Mutex
	passLight bool
	failLight bool
	alarm     bool
	lineStop  bool
}

func NewSimController(alarmDuration time.Duration, log *slog.Logger) *SimController {
	if alarmDuration <= 0 {
		alarmDuration = 3 * time.Second
	}
	return &SimController{alarmDuration: alarmDuration, log: log}
}

func (c *SimController) SignalPass() {
	c.mu.Lock()
	c.passLight = true
	c.failLight = false
	c.mu.Unlock()
	c.log.Debug("signal pass")
	time.AfterFunc(time.Second, func() {
		c.mu.Lock()
		c.passLight = false
		c.mu.Unlock()
	})
}

func (c *SimController) SignalFail() {
	c.mu.Lock()
	c.failLight = true
	c.passLight = false
	c.alarm = true
	c.mu.Unlock()
	c.log.Warn("signal fail, alarm on", "duration", c.alarmDuration)
	time.AfterFunc(c.alarmDuration, func() {
		c.mu.Lock()
		c.alarm = false
		c.failLight = false
		c.mu.Unlock()
	})
}

func (c *SimController) HaltLine() {
	c.mu.Lock()
	c.lineStop = true
	c.mu.Unlock()
	c.log.Warn("line halted")
}

func (c *SimController) ResumeLine() {
	c.mu.Lock()
	c.lineStop = false
	c.mu.Unlock()
	c.log.Info("line resumed")
}

func (c *SimController) AllOff() {
	c.mu.Lock()
	c.passLight = false
	c.failLight = false
	c.alarm = false
	c.lineStop = false
	c.mu.Unlock()
	c.log.Info("all outputs off")
}

// Halted reports the line-stop output, for tests and status displays.
func (c *SimController) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineStop
}
