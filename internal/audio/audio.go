// Package audio holds the sound-cue collaborator of the draw.
// Cues are fire-and-forget: a failing or missing player never affects a draw.
package audio

import (
	"github.com/google/logger"
)

// Cue names a moment in the draw that may be accompanied by sound.
type Cue string

const (
	CueSpinStart Cue = "spin_start"
	CueSpinStop  Cue = "spin_stop"
	CueWinner    Cue = "winner"
	CueNoWinner  Cue = "no_winner"
)

// Player plays a cue.
type Player interface {
	Play(cue Cue)
}

// Nop discards every cue.
type Nop struct{}

func (Nop) Play(Cue) {}

// LogPlayer records cues in the log; useful when no speaker is attached.
type LogPlayer struct{}

func (LogPlayer) Play(cue Cue) {
	logger.Infof("audio cue: %s", cue)
}

// Fire plays cue on p in its own goroutine and swallows panics.
func Fire(p Player, cue Cue) {
	if p == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Warningf("audio player panicked on %s: %v", cue, r)
			}
		}()
		p.Play(cue)
	}()
}
