package chess

import (
	"fmt"
	"time"
)

// DefaultInitialSeconds is ten minutes per side.
const DefaultInitialSeconds = 600

// TimeControl represents the time control settings for a game
type TimeControl struct {
	Initial int `json:"initial"` // seconds per side
}

// DefaultTimeControl is the ten-minute game.
func DefaultTimeControl() TimeControl {
	return TimeControl{Initial: DefaultInitialSeconds}
}

// ClockState is the phase of the two-sided countdown.
type ClockState uint8

const (
	ClockIdle ClockState = iota
	ClockWhiteRunning
	ClockBlackRunning
	ClockExpired
)

func (s ClockState) String() string {
	switch s {
	case ClockIdle:
		return "idle"
	case ClockWhiteRunning:
		return "white_running"
	case ClockBlackRunning:
		return "black_running"
	case ClockExpired:
		return "expired"
	default:
		return fmt.Sprintf("clock_state(%d)", s)
	}
}

// Forfeit is raised once, on the tick that runs a side out of time.
type Forfeit struct {
	Loser  Color `json:"loser"`
	Winner Color `json:"winner"`
}

// Clock holds two countdowns of which at most one runs at a time.
// It does not keep time itself; the host calls Tick once per elapsed second.
type Clock struct {
	initial int
	white   int
	black   int
	state   ClockState
	loser   Color
}

// NewClock creates an idle clock with both sides at tc.Initial seconds.
func NewClock(tc TimeControl) *Clock {
	if tc.Initial <= 0 {
		tc.Initial = DefaultInitialSeconds
	}
	c := &Clock{initial: tc.Initial}
	c.Reset()
	return c
}

// Start begins White's countdown. Only valid from Idle.
func (c *Clock) Start() {
	if c.state == ClockIdle {
		c.state = ClockWhiteRunning
	}
}

// Switch stops the running side and starts the other.
func (c *Clock) Switch() {
	switch c.state {
	case ClockWhiteRunning:
		c.state = ClockBlackRunning
	case ClockBlackRunning:
		c.state = ClockWhiteRunning
	}
}

// Tick removes one second from the running side. It returns a Forfeit when
// that side reaches zero; the clock is then Expired and ignores further ticks.
func (c *Clock) Tick() *Forfeit {
	var remaining *int
	var side Color
	switch c.state {
	case ClockWhiteRunning:
		remaining, side = &c.white, White
	case ClockBlackRunning:
		remaining, side = &c.black, Black
	default:
		return nil
	}

	if *remaining > 0 {
		*remaining--
	}
	if *remaining == 0 {
		return c.expire(side)
	}
	return nil
}

// Advance ticks up to n times, stopping at the first forfeit.
func (c *Clock) Advance(n int) *Forfeit {
	for i := 0; i < n; i++ {
		if f := c.Tick(); f != nil {
			return f
		}
	}
	return nil
}

func (c *Clock) expire(side Color) *Forfeit {
	c.state = ClockExpired
	c.loser = side
	return &Forfeit{Loser: side, Winner: side.Opponent()}
}

// Reset restores both sides to the initial time and stops the clock.
func (c *Clock) Reset() {
	c.white = c.initial
	c.black = c.initial
	c.state = ClockIdle
}

// SetTimes overwrites both counters without changing the state.
func (c *Clock) SetTimes(white, black int) {
	c.white = max(white, 0)
	c.black = max(black, 0)
}

// Resume starts side's countdown from whatever state the clock is in. A side
// with no time left expires immediately.
func (c *Clock) Resume(side Color) *Forfeit {
	if c.Remaining(side) == 0 {
		return c.expire(side)
	}
	if side == White {
		c.state = ClockWhiteRunning
	} else {
		c.state = ClockBlackRunning
	}
	return nil
}

// Remaining returns side's seconds left.
func (c *Clock) Remaining(side Color) int {
	if side == White {
		return c.white
	}
	return c.black
}

func (c *Clock) State() ClockState {
	return c.state
}

// Initial returns the configured starting seconds per side.
func (c *Clock) Initial() int {
	return c.initial
}

// Running returns the side whose countdown is active.
func (c *Clock) Running() (Color, bool) {
	switch c.state {
	case ClockWhiteRunning:
		return White, true
	case ClockBlackRunning:
		return Black, true
	default:
		return White, false
	}
}

// Expired returns the side that ran out of time.
func (c *Clock) Expired() (Color, bool) {
	if c.state != ClockExpired {
		return White, false
	}
	return c.loser, true
}

// FormatTimeRemaining renders seconds as mm:ss.
func FormatTimeRemaining(seconds int) string {
	d := time.Duration(max(seconds, 0)) * time.Second
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
