// Package spa decides when a dynamically rendered page has settled enough to
// extract. Machine is a pure state machine fed explicit timestamps; Wait drives
// it from a mutation source and a clock.
package spa

import "time"

type State int

const (
	StateObserving State = iota
	StateDebouncing
	StateStable
	StateStatic
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateObserving:
		return "observing"
	case StateDebouncing:
		return "debouncing"
	case StateStable:
		return "stable"
	case StateStatic:
		return "static"
	case StateTimedOut:
		return "timeout"
	}
	return "unknown"
}

// Config holds the timing knobs. Zero fields take the defaults.
type Config struct {
	// Window is the length of one stability window.
	Window time.Duration `yaml:"window"`
	// Debounce is the gap below which successive mutations count as one burst.
	Debounce time.Duration `yaml:"debounce"`
	// StableWindows is how many consecutive quiet windows mean "stable".
	StableWindows int `yaml:"stable_windows"`
	// NearZero is the most mutations a window may see and still be quiet.
	NearZero int `yaml:"near_zero"`
	// StaticWindow resolves immediately when no mutation arrives within it.
	StaticWindow time.Duration `yaml:"static_window"`
	// Stages are extraction checkpoints measured from the start; the last one
	// is the hard ceiling.
	Stages []time.Duration `yaml:"stages"`
}

func DefaultConfig() Config {
	return Config{
		Window:        500 * time.Millisecond,
		Debounce:      300 * time.Millisecond,
		StableWindows: 2,
		NearZero:      1,
		StaticWindow:  150 * time.Millisecond,
		Stages:        []time.Duration{time.Second, 3 * time.Second, 5 * time.Second},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.StableWindows <= 0 {
		c.StableWindows = d.StableWindows
	}
	if c.NearZero < 0 {
		c.NearZero = 0
	}
	if c.StaticWindow <= 0 {
		c.StaticWindow = d.StaticWindow
	}
	if len(c.Stages) == 0 {
		c.Stages = d.Stages
	}
	return c
}

// WithCeiling rescales the stages so the last one equals ceiling.
func (c Config) WithCeiling(ceiling time.Duration) Config {
	c = c.WithDefaults()
	last := c.Stages[len(c.Stages)-1]
	if ceiling <= 0 || ceiling == last {
		return c
	}
	stages := make([]time.Duration, len(c.Stages))
	for i, s := range c.Stages {
		stages[i] = time.Duration(float64(s) * float64(ceiling) / float64(last))
	}
	c.Stages = stages
	return c
}

type Reason string

const (
	ReasonStable     Reason = "stable"
	ReasonStatic     Reason = "static"
	ReasonCheckpoint Reason = "checkpoint"
	ReasonCeiling    Reason = "ceiling"
	ReasonCancelled  Reason = "cancelled"
)

// Decision is what Advance tells the driver to do.
type Decision struct {
	// Done means the machine reached a terminal state.
	Done   bool
	Stable bool
	Reason Reason
	// Checkpoint asks the driver for an early extraction attempt at Stage.
	Checkpoint bool
	Stage      int
}

type Machine struct {
	cfg          Config
	start        time.Time
	state        State
	windowStart  time.Time
	windowCount  int
	quiet        int
	lastMutation time.Time
	seen         bool
	stage        int
}

func NewMachine(cfg Config, start time.Time) *Machine {
	return &Machine{
		cfg:         cfg.WithDefaults(),
		start:       start,
		state:       StateObserving,
		windowStart: start,
	}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) terminal() bool {
	return m.state == StateStable || m.state == StateStatic || m.state == StateTimedOut
}

// Observe records n mutations delivered at the given time. A batch arriving
// within Debounce of the previous one restarts the stability window instead
// of adding to it.
func (m *Machine) Observe(at time.Time, n int) {
	if m.terminal() || n <= 0 {
		return
	}
	m.closeWindows(at)
	if m.terminal() {
		return
	}
	if m.seen && at.Sub(m.lastMutation) < m.cfg.Debounce {
		m.state = StateDebouncing
		m.quiet = 0
		m.windowStart = at
		m.windowCount = 0
	} else {
		m.windowCount += n
	}
	m.seen = true
	m.lastMutation = at
}

// Advance moves the clock to at and reports what the driver should do.
func (m *Machine) Advance(at time.Time) Decision {
	if d, ok := m.finished(); ok {
		return d
	}
	elapsed := at.Sub(m.start)
	if !m.seen && elapsed >= m.cfg.StaticWindow {
		m.state = StateStatic
		return Decision{Done: true, Stable: true, Reason: ReasonStatic}
	}
	m.closeWindows(at)
	if d, ok := m.finished(); ok {
		return d
	}
	if m.stage < len(m.cfg.Stages) && elapsed >= m.cfg.Stages[m.stage] {
		idx := m.stage
		m.stage++
		if idx == len(m.cfg.Stages)-1 {
			m.state = StateTimedOut
			return Decision{Done: true, Reason: ReasonCeiling, Stage: idx}
		}
		return Decision{Checkpoint: true, Reason: ReasonCheckpoint, Stage: idx}
	}
	return Decision{}
}

// NextDeadline is the earliest time at which Advance can change the outcome.
func (m *Machine) NextDeadline() time.Time {
	next := m.windowStart.Add(m.cfg.Window)
	if !m.seen {
		if s := m.start.Add(m.cfg.StaticWindow); s.Before(next) {
			next = s
		}
	}
	if m.stage < len(m.cfg.Stages) {
		if s := m.start.Add(m.cfg.Stages[m.stage]); s.Before(next) {
			next = s
		}
	}
	return next
}

func (m *Machine) finished() (Decision, bool) {
	switch m.state {
	case StateStable:
		return Decision{Done: true, Stable: true, Reason: ReasonStable}, true
	case StateStatic:
		return Decision{Done: true, Stable: true, Reason: ReasonStatic}, true
	case StateTimedOut:
		return Decision{Done: true, Reason: ReasonCeiling, Stage: len(m.cfg.Stages) - 1}, true
	}
	return Decision{}, false
}

func (m *Machine) closeWindows(at time.Time) {
	for !at.Before(m.windowStart.Add(m.cfg.Window)) {
		if m.windowCount <= m.cfg.NearZero {
			m.quiet++
		} else {
			m.quiet = 0
		}
		m.windowStart = m.windowStart.Add(m.cfg.Window)
		m.windowCount = 0
		if m.state == StateDebouncing {
			m.state = StateObserving
		}
		if m.seen && m.quiet >= m.cfg.StableWindows {
			m.state = StateStable
			return
		}
	}
}
