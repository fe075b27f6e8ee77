package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"luckydraw/internal/audio"
	"luckydraw/internal/storage"
)

type recordingPlayer struct {
	mu   sync.Mutex
	cues []audio.Cue
}

func (p *recordingPlayer) Play(cue audio.Cue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cues = append(p.cues, cue)
}

func (p *recordingPlayer) played() []audio.Cue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.cues)
}

func newTestService(t *testing.T, kv storage.Store, player audio.Player) *LotteryService {
	t.Helper()
	s := NewLotteryService(context.Background(), kv, Options{
		PageSize: 5,
		Spinner: SpinnerOptions{
			Duration:     100 * time.Millisecond,
			TickInterval: 2 * time.Millisecond,
			Rand:         seeded(),
		},
		Player: player,
	})
	t.Cleanup(s.Close)
	return s
}

func spinAndWait(t *testing.T, s *LotteryService) {
	t.Helper()
	if err := s.Spin(); err != nil {
		t.Fatalf("Expected spin to start, but got %v", err)
	}
	s.Wait()
	s.Acknowledge()
}

func TestLotteryService_Draw(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	service := newTestService(t, kv, nil)

	if err := service.SaveSettings(ctx, drawSettings(1, 10, 3, 10)); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}

	t.Run("first draw", func(t *testing.T) {
		spinAndWait(t, service)
		winners := service.Winners()
		if len(winners) != 3 {
			t.Fatalf("Expected 3 winners, but got %d", len(winners))
		}
		nums := numbersOf(winners)
		if !slices.IsSorted(nums) {
			t.Errorf("Expected winners in ascending order, but got %v", nums)
		}
		for _, w := range winners {
			if w.Number < 1 || w.Number > 10 {
				t.Errorf("Expected %d within [1,10]", w.Number)
			}
			if !w.Timestamp.Equal(winners[0].Timestamp) {
				t.Error("Expected all winners of one draw to share a timestamp")
			}
		}
		sess := service.Session()
		if sess.NonWinnerRemaining != 7 || sess.WinnersDrawn != 3 || !sess.IsParticipantSet {
			t.Errorf("Expected 7 remaining and 3 drawn, but got %+v", sess)
		}
	})

	t.Run("spin while spinning is ignored", func(t *testing.T) {
		if err := service.Spin(); err != nil {
			t.Fatalf("Expected spin to start, but got %v", err)
		}
		if err := service.Spin(); !errors.Is(err, ErrSpinning) {
			t.Errorf("Expected ErrSpinning, but got %v", err)
		}
		if err := service.Reset(ctx); !errors.Is(err, ErrSpinning) {
			t.Errorf("Expected reset to be rejected with ErrSpinning, but got %v", err)
		}
		if err := service.ClearHistory(ctx); !errors.Is(err, ErrSpinning) {
			t.Errorf("Expected clear to be rejected with ErrSpinning, but got %v", err)
		}
		service.Wait()
		if got := len(service.Winners()); got != 6 {
			t.Errorf("Expected 6 winners after two draws, but got %d", got)
		}
	})

	t.Run("draws until exhausted", func(t *testing.T) {
		spinAndWait(t, service)
		spinAndWait(t, service)
		if got := len(service.Winners()); got != 10 {
			t.Fatalf("Expected 10 winners, but got %d", got)
		}
		nums := numbersOf(service.Winners())
		slices.Sort(nums)
		if !slices.Equal(nums, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
			t.Errorf("Expected every number exactly once, but got %v", nums)
		}

		spinAndWait(t, service)
		if got := len(service.Winners()); got != 10 {
			t.Errorf("Expected history to stay at 10, but got %d", got)
		}
		if sess := service.Session(); sess.LastOutcome == nil || len(sess.LastOutcome.Winners) != 0 {
			t.Errorf("Expected an empty last outcome, but got %+v", sess.LastOutcome)
		}
	})

	t.Run("history survives restart", func(t *testing.T) {
		restarted := newTestService(t, kv, nil)
		if got := len(restarted.Winners()); got != 10 {
			t.Errorf("Expected 10 persisted winners, but got %d", got)
		}
		if got := restarted.Settings(); got.WinnerPerSpin != 3 {
			t.Errorf("Expected persisted settings, but got %+v", got)
		}
	})

	t.Run("history pages", func(t *testing.T) {
		v := service.History()
		if v.TotalPages != 2 || v.TotalData != 10 || len(v.Page) != 5 {
			t.Errorf("Expected 2 pages of 5, but got %+v", v)
		}
		if v = service.NextPage(); v.CurrentPage != 1 {
			t.Errorf("Expected page 1, but got %d", v.CurrentPage)
		}
		if v = service.NextPage(); v.CurrentPage != 1 {
			t.Errorf("Expected next at the last page to stay on 1, but got %d", v.CurrentPage)
		}
		if v = service.Search("7"); v.CurrentPage != 0 || v.TotalData != 1 {
			t.Errorf("Expected a single match on page 0, but got %+v", v)
		}
		if v = service.ClearSearch(); v.TotalData != 10 {
			t.Errorf("Expected all records after clearing search, but got %+v", v)
		}
	})

	t.Run("reset empties history", func(t *testing.T) {
		if err := service.Reset(ctx); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if got := len(service.Winners()); got != 0 {
			t.Errorf("Expected empty history, but got %d", got)
		}
		if got := NewHistoryStore(kv).LoadAll(ctx); len(got) != 0 {
			t.Errorf("Expected empty persisted history, but got %v", got)
		}
		if sess := service.Session(); len(sess.CurrentWinners) != 0 {
			t.Errorf("Expected a cleared session, but got %+v", sess)
		}
	})
}

func TestLotteryService_CapReached(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, storage.NewMemoryStore(), nil)
	if err := service.SaveSettings(ctx, drawSettings(0, 100, 4, 6)); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	spinAndWait(t, service)
	spinAndWait(t, service)
	spinAndWait(t, service)

	if got := len(service.Winners()); got != 6 {
		t.Errorf("Expected 6 winners under the cap, but got %d", got)
	}
	if sess := service.Session(); sess.LastOutcome == nil || sess.LastOutcome.Reason != "cap_reached" {
		t.Errorf("Expected cap_reached, but got %+v", sess.LastOutcome)
	}
}

func TestLotteryService_Sound(t *testing.T) {
	ctx := context.Background()
	player := &recordingPlayer{}
	service := newTestService(t, storage.NewMemoryStore(), player)

	settings := drawSettings(0, 5, 1, 5)
	settings.SoundEnabled = true
	if err := service.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	spinAndWait(t, service)
	time.Sleep(20 * time.Millisecond)

	cues := player.played()
	for _, want := range []audio.Cue{audio.CueSpinStart, audio.CueSpinStop, audio.CueWinner} {
		if !slices.Contains(cues, want) {
			t.Errorf("Expected cue %s among %v", want, cues)
		}
	}

	settings.SoundEnabled = false
	if err := service.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	before := len(player.played())
	spinAndWait(t, service)
	time.Sleep(20 * time.Millisecond)
	if after := len(player.played()); after != before {
		t.Errorf("Expected no cues with sound disabled, but got %d new", after-before)
	}
}

func TestLotteryService_Close(t *testing.T) {
	service := NewLotteryService(context.Background(), storage.NewMemoryStore(), Options{
		Spinner: SpinnerOptions{Duration: time.Hour},
	})
	if err := service.Spin(); err != nil {
		t.Fatalf("Expected spin to start, but got %v", err)
	}
	service.Close()

	if service.Session().IsSpinning {
		t.Error("Expected the draw to be aborted")
	}
	if got := len(service.Winners()); got != 0 {
		t.Errorf("Expected aborted draw to record nothing, but got %d", got)
	}
	if err := service.Spin(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, but got %v", err)
	}
}

func TestLotteryService_ReloadHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("external clear while idle", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		service := newTestService(t, kv, nil)
		if err := service.SaveSettings(ctx, drawSettings(1, 10, 3, 10)); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		spinAndWait(t, service)

		if err := kv.Delete(ctx, storage.KeyWinners); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		service.ReloadHistory(ctx)
		if got := len(service.Winners()); got != 0 {
			t.Fatalf("Expected the cleared history to be picked up, but got %d", got)
		}

		spinAndWait(t, service)
		if got := NewHistoryStore(kv).LoadAll(ctx); len(got) != 3 {
			t.Errorf("Expected only the new draw to be persisted, but got %v", got)
		}
	})

	t.Run("external clear during a draw", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		service := newTestService(t, kv, nil)
		if err := service.SaveSettings(ctx, drawSettings(1, 10, 3, 10)); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		spinAndWait(t, service)

		if err := service.Spin(); err != nil {
			t.Fatalf("Expected spin to start, but got %v", err)
		}
		if err := kv.Delete(ctx, storage.KeyWinners); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		service.ReloadHistory(ctx)
		if got := len(service.Winners()); got != 3 {
			t.Errorf("Expected the reload to wait for the draw, but history has %d", got)
		}
		service.Wait()

		if got := len(service.Winners()); got != 3 {
			t.Errorf("Expected only the settled draw after reload, but got %d", got)
		}
		if got := NewHistoryStore(kv).LoadAll(ctx); len(got) != 3 {
			t.Errorf("Expected cleared records to stay cleared, but got %v", got)
		}
		if v := service.History(); v.TotalData != 3 {
			t.Errorf("Expected the history view to follow the reload, but got %+v", v)
		}
	})
}
