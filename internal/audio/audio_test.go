package audio

import (
	"testing"
	"time"
)

type chanPlayer chan Cue

func (c chanPlayer) Play(cue Cue) { c <- cue }

type panicPlayer struct{}

func (panicPlayer) Play(Cue) { panic("speaker unplugged") }

func TestFire(t *testing.T) {
	t.Run("delivers cue", func(t *testing.T) {
		p := make(chanPlayer, 1)
		Fire(p, CueWinner)
		select {
		case got := <-p:
			if got != CueWinner {
				t.Errorf("Expected %s, but got %s", CueWinner, got)
			}
		case <-time.After(time.Second):
			t.Fatal("Expected the cue to be played")
		}
	})

	t.Run("survives panics and nil players", func(t *testing.T) {
		Fire(panicPlayer{}, CueSpinStart)
		Fire(nil, CueSpinStart)
		Fire(Nop{}, CueSpinStop)
		time.Sleep(20 * time.Millisecond)
	})
}
