package services

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"luckydraw/internal/models"
)

// Default animation timing.
const (
	DefaultSpinDuration = 3 * time.Second
	DefaultTickInterval = 50 * time.Millisecond
)

// Phase is the spinner's position in its Idle -> Spinning -> Settled -> Idle cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSpinning
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseSpinning:
		return "spinning"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = PhaseIdle
	case "spinning":
		*p = PhaseSpinning
	case "settled":
		*p = PhaseSettled
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Session is a snapshot of the ephemeral draw state shown to the user.
type Session struct {
	Phase           Phase               `json:"phase"`
	IsSpinning      bool                `json:"isSpinning"`
	CurrentNumber   int                 `json:"currentNumber"`
	CurrentWinners  []int               `json:"currentWinners"`
	ShowWinnerModal bool                `json:"showWinnerModal"`
	LastOutcome     *models.DrawOutcome `json:"lastOutcome,omitempty"`
}

// SpinnerOptions tunes timing and injects the random source and clock.
type SpinnerOptions struct {
	Duration     time.Duration
	TickInterval time.Duration
	Rand         Source
	Now          func() time.Time
}

// Spinner runs the animated draw. While spinning, a ticker replaces the
// display number with random eligible values; a single completion timer
// stops the ticker, computes the outcome and hands it to the settle callback.
type Spinner struct {
	mu       sync.Mutex
	duration time.Duration
	tick     time.Duration
	rng      Source
	now      func() time.Time

	session  Session
	gen      uint64
	settling bool
	timer    *time.Timer
	stopTick chan struct{}
	done     chan struct{}
}

// NewSpinner creates an idle Spinner. Zero options fall back to defaults.
func NewSpinner(opts SpinnerOptions) *Spinner {
	if opts.Duration <= 0 {
		opts.Duration = DefaultSpinDuration
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Spinner{
		duration: opts.Duration,
		tick:     opts.TickInterval,
		rng:      opts.Rand,
		now:      opts.Now,
	}
}

// Spin starts a draw over settings excluding drawn. It returns false without
// doing anything when a draw is already in flight. onSettle runs exactly once
// per accepted spin, before the session leaves the spinning phase, and must
// not call back into the Spinner.
func (s *Spinner) Spin(settings models.Settings, drawn []int, onSettle func(models.DrawOutcome)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Phase == PhaseSpinning {
		return false
	}

	s.gen++
	gen := s.gen
	s.session = Session{
		Phase:         PhaseSpinning,
		IsSpinning:    true,
		CurrentNumber: settings.StartNumber,
	}
	s.stopTick = make(chan struct{})
	s.done = make(chan struct{})

	drawn = slices.Clone(drawn)
	go s.roll(gen, s.stopTick, settings)
	s.timer = time.AfterFunc(s.duration, func() {
		s.settle(gen, settings, drawn, onSettle)
	})
	return true
}

// roll updates the cosmetic display number until stop is closed.
func (s *Spinner) roll(gen uint64, stop <-chan struct{}, settings models.Settings) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.gen == gen && s.session.Phase == PhaseSpinning && !s.settling && settings.NumOfParticipants > 0 {
				s.session.CurrentNumber = settings.StartNumber + s.rng.IntN(settings.NumOfParticipants)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) settle(gen uint64, settings models.Settings, drawn []int, onSettle func(models.DrawOutcome)) {
	s.mu.Lock()
	if s.gen != gen || s.session.Phase != PhaseSpinning {
		s.mu.Unlock()
		return
	}
	s.settling = true
	close(s.stopTick)
	s.stopTick = nil
	s.timer = nil
	outcome := Draw(settings, drawn, s.rng)
	outcome.Timestamp = s.now().UTC()
	s.mu.Unlock()

	if onSettle != nil {
		onSettle(outcome)
	}

	s.mu.Lock()
	s.settling = false
	s.session.Phase = PhaseSettled
	s.session.IsSpinning = false
	s.session.CurrentWinners = outcome.Winners
	if len(outcome.Winners) > 0 {
		s.session.CurrentNumber = outcome.Winners[0]
	}
	s.session.ShowWinnerModal = true
	s.session.LastOutcome = &outcome
	done := s.done
	s.done = nil
	s.mu.Unlock()
	close(done)
}

// Abort cancels an in-flight draw: both timers stop, the outcome is never
// computed and the session returns to idle. A draw already settling is
// allowed to finish. It reports whether a draw was cancelled.
func (s *Spinner) Abort() bool {
	s.mu.Lock()
	if s.session.Phase != PhaseSpinning {
		s.mu.Unlock()
		return false
	}
	if s.settling {
		done := s.done
		s.mu.Unlock()
		<-done
		return false
	}
	s.timer.Stop()
	s.timer = nil
	close(s.stopTick)
	s.stopTick = nil
	s.gen++
	s.session = Session{Phase: PhaseIdle}
	done := s.done
	s.done = nil
	s.mu.Unlock()
	close(done)
	return true
}

// Wait blocks until the in-flight draw, if any, settles or is aborted.
func (s *Spinner) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Acknowledge closes the winner modal and returns a settled session to idle.
// The last winners stay on display.
func (s *Spinner) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Phase != PhaseSettled {
		return
	}
	s.session.Phase = PhaseIdle
	s.session.ShowWinnerModal = false
}

// Reset clears the session. It is rejected while a draw is in flight.
func (s *Spinner) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Phase == PhaseSpinning {
		return false
	}
	s.session = Session{Phase: PhaseIdle}
	return true
}

// IsSpinning reports whether a draw is in flight.
func (s *Spinner) IsSpinning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Phase == PhaseSpinning
}

// Session returns a copy of the current session.
func (s *Spinner) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.session
	snap.CurrentWinners = slices.Clone(s.session.CurrentWinners)
	if s.session.LastOutcome != nil {
		last := *s.session.LastOutcome
		last.Winners = slices.Clone(last.Winners)
		snap.LastOutcome = &last
	}
	return snap
}
