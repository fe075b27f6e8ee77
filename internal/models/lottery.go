package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSettings is returned when a settings object fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// MaxParticipants bounds NumOfParticipants so a draw can hold the whole
// eligible interval in memory.
const MaxParticipants = 1_000_000

// Settings represents the configuration of a lucky draw.
// StartNumber and NumOfParticipants define the half-open interval of
// eligible participant numbers: [StartNumber, StartNumber+NumOfParticipants).
type Settings struct {
	Title             string `json:"title"`
	Subtitle          string `json:"subtitle"`
	WinnerPerSpin     int    `json:"winnerPerSpin" binding:"min=1"`
	MaxWinners        int    `json:"maxWinners" binding:"min=1"`
	StartNumber       int    `json:"startNumber" binding:"min=0"`
	NumOfParticipants int    `json:"numOfParticipants" binding:"min=1,max=1000000"`
	PaddedNumber      int    `json:"paddedNumber" binding:"min=1"`
	SoundEnabled      bool   `json:"soundEnabled"`
}

// DefaultSettings returns the settings used before anything has been saved.
func DefaultSettings() Settings {
	return Settings{
		Title:             "FUNWALK",
		Subtitle:          "CLUSTER MONTERREY CITRALAND CIBUBUR",
		WinnerPerSpin:     10,
		MaxWinners:        10,
		StartNumber:       0,
		NumOfParticipants: 1,
		PaddedNumber:      10,
		SoundEnabled:      true,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.StartNumber < 0:
		return fmt.Errorf("%w: startNumber must be >= 0", ErrInvalidSettings)
	case s.NumOfParticipants < 1:
		return fmt.Errorf("%w: numOfParticipants must be >= 1", ErrInvalidSettings)
	case s.NumOfParticipants > MaxParticipants:
		return fmt.Errorf("%w: numOfParticipants must be <= %d", ErrInvalidSettings, MaxParticipants)
	case s.StartNumber > math.MaxInt-s.NumOfParticipants:
		return fmt.Errorf("%w: startNumber+numOfParticipants overflows", ErrInvalidSettings)
	case s.WinnerPerSpin < 1:
		return fmt.Errorf("%w: winnerPerSpin must be >= 1", ErrInvalidSettings)
	case s.MaxWinners < 1:
		return fmt.Errorf("%w: maxWinners must be >= 1", ErrInvalidSettings)
	case s.PaddedNumber < 1:
		return fmt.Errorf("%w: paddedNumber must be >= 1", ErrInvalidSettings)
	}
	return nil
}

// EndNumber is the exclusive upper bound of the eligible interval.
func (s Settings) EndNumber() int {
	return s.StartNumber + s.NumOfParticipants
}

// Contains reports whether n is an eligible participant number.
func (s Settings) Contains(n int) bool {
	return n >= s.StartNumber && n < s.EndNumber()
}

// Pad renders n zero-padded to the configured display width.
func (s Settings) Pad(n int) string {
	return PadNumber(n, s.PaddedNumber)
}

// PadNumber renders n as a decimal string left-padded with zeros to width.
func PadNumber(n, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%0*d", width, n)
}

// WinnerRecord stores a single drawn number and the moment its draw settled.
type WinnerRecord struct {
	Number    int       `json:"number" csv:"number"`
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
}

// DrawReason explains the size of a draw outcome.
type DrawReason string

const (
	// ReasonDrawn means at least one winner was selected.
	ReasonDrawn DrawReason = "drawn"
	// ReasonExhausted means every eligible number has already won.
	ReasonExhausted DrawReason = "exhausted"
	// ReasonCapReached means the maxWinners budget is used up.
	ReasonCapReached DrawReason = "cap_reached"
)

// DrawOutcome is the result of a single settled draw.
// Winners are sorted ascending; that is display order, not draw order.
type DrawOutcome struct {
	Winners   []int      `json:"winners"`
	Timestamp time.Time  `json:"timestamp"`
	Reason    DrawReason `json:"reason"`
}

// Records stamps every winner with the outcome's shared timestamp.
func (o DrawOutcome) Records() []WinnerRecord {
	records := make([]WinnerRecord, 0, len(o.Winners))
	for _, n := range o.Winners {
		records = append(records, WinnerRecord{Number: n, Timestamp: o.Timestamp})
	}
	return records
}
