package services

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/logger"

	"luckydraw/internal/audio"
	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

var (
	// ErrSpinning is returned for intents that are rejected while a draw is in flight.
	ErrSpinning = errors.New("a draw is already in progress")
	// ErrClosed is returned once the service has been closed.
	ErrClosed = errors.New("lottery service is closed")
)

// Options configures a LotteryService.
type Options struct {
	PageSize int
	Spinner  SpinnerOptions
	Player   audio.Player
}

// SessionView is the draw session plus the facts the spin button needs.
type SessionView struct {
	Session
	IsParticipantSet   bool `json:"isParticipantSet"`
	NonWinnerRemaining int  `json:"nonWinnerRemaining"`
	WinnersDrawn       int  `json:"winnersDrawn"`
	MaxWinners         int  `json:"maxWinners"`
}

// LotteryService is the application state container. Every user intent is a
// method; all state is owned here and reached only through these methods.
type LotteryService struct {
	mu       sync.Mutex
	settings *SettingsStore
	history  *HistoryStore
	spinner  *Spinner
	pager    *Paginator
	player   audio.Player
	closed   bool

	// historyStale is set when storage changed under an in-flight draw;
	// the draw reloads history before appending its winners.
	historyStale bool
}

// NewLotteryService loads settings and history from kv and returns a ready service.
func NewLotteryService(ctx context.Context, kv storage.Store, opts Options) *LotteryService {
	if opts.Player == nil {
		opts.Player = audio.Nop{}
	}
	s := &LotteryService{
		settings: NewSettingsStore(kv),
		history:  NewHistoryStore(kv),
		spinner:  NewSpinner(opts.Spinner),
		pager:    NewPaginator(opts.PageSize),
		player:   opts.Player,
	}
	settings := s.settings.Load(ctx)
	records := s.history.LoadAll(ctx)
	s.pager.SetRecords(records, settings.PaddedNumber)
	logger.Infof("Loaded %d winner records; eligible range [%d, %d)", len(records), settings.StartNumber, settings.EndNumber())
	return s
}

// Settings returns the active settings.
func (s *LotteryService) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Current()
}

// SaveSettings validates and persists settings. A draw already in flight
// keeps the settings it started with.
func (s *LotteryService) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.settings.Save(ctx, settings); err != nil {
		return err
	}
	s.pager.SetRecords(s.history.Records(), settings.PaddedNumber)
	logger.Infof("Saved settings: %+v", settings)
	return nil
}

// ReloadSettings re-reads settings from storage, e.g. after an external edit.
func (s *LotteryService) ReloadSettings(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	settings := s.settings.Load(ctx)
	s.pager.SetRecords(s.history.Records(), settings.PaddedNumber)
	logger.Infof("Reloaded settings: %+v", settings)
}

// ReloadHistory re-reads the winner history from storage, e.g. after another
// process cleared it. While a draw is in flight the reload is deferred until
// the draw settles, so the draw appends to the reloaded history rather than
// writing the stale in-memory copy back.
func (s *LotteryService) ReloadHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.spinner.IsSpinning() {
		s.historyStale = true
		logger.Infof("Winner history changed during a draw; reloading when it settles")
		return
	}
	s.reloadHistory(ctx)
}

func (s *LotteryService) reloadHistory(ctx context.Context) {
	s.historyStale = false
	records := s.history.LoadAll(ctx)
	s.pager.SetRecords(records, s.settings.Current().PaddedNumber)
	logger.Infof("Reloaded %d winner records", len(records))
}

// Spin starts an animated draw. It returns ErrSpinning, and changes nothing,
// if a draw is already in flight.
func (s *LotteryService) Spin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	settings := s.settings.Current()
	if !s.spinner.Spin(settings, s.history.Numbers(), s.onSettle) {
		return ErrSpinning
	}
	s.cue(settings, audio.CueSpinStart)
	return nil
}

// onSettle runs on the spinner's completion timer.
func (s *LotteryService) onSettle(outcome models.DrawOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings.Current()
	records := outcome.Records()
	if s.historyStale {
		s.reloadHistory(context.Background())
		drawn := s.history.Numbers()
		records = slices.DeleteFunc(records, func(r models.WinnerRecord) bool {
			return slices.Contains(drawn, r.Number)
		})
	}
	s.history.Append(context.Background(), records...)
	s.pager.SetRecords(s.history.Records(), settings.PaddedNumber)

	s.cue(settings, audio.CueSpinStop)
	if len(outcome.Winners) > 0 {
		s.cue(settings, audio.CueWinner)
		logger.Infof("Draw settled: %v", outcome.Winners)
	} else {
		s.cue(settings, audio.CueNoWinner)
		logger.Infof("Draw settled without winners: %s", outcome.Reason)
	}
}

// Wait blocks until the in-flight draw, if any, has settled.
func (s *LotteryService) Wait() {
	s.spinner.Wait()
}

// Acknowledge closes the winner modal.
func (s *LotteryService) Acknowledge() {
	s.spinner.Acknowledge()
}

// Reset clears the session and the whole winner history.
func (s *LotteryService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.spinner.Reset() {
		return ErrSpinning
	}
	s.clearHistory(ctx)
	return nil
}

// ClearHistory deletes every winner record. It is rejected while spinning.
func (s *LotteryService) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.spinner.IsSpinning() {
		return ErrSpinning
	}
	s.clearHistory(ctx)
	return nil
}

func (s *LotteryService) clearHistory(ctx context.Context) {
	s.history.Clear(ctx)
	s.pager.SetRecords(nil, s.settings.Current().PaddedNumber)
	logger.Infof("Cleared winner history")
}

// Session returns the current draw session.
func (s *LotteryService) Session() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := s.settings.Current()
	return SessionView{
		Session:            s.spinner.Session(),
		IsParticipantSet:   s.settings.Saved() && settings.NumOfParticipants >= 1,
		NonWinnerRemaining: RemainingCount(settings, s.history.Numbers()),
		WinnersDrawn:       s.history.Len(),
		MaxWinners:         settings.MaxWinners,
	}
}

// Winners returns the full history in insertion order.
func (s *LotteryService) Winners() []models.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Records()
}

// History returns the active history page.
func (s *LotteryService) History() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.View()
}

// Search filters the history by padded-number substring.
func (s *LotteryService) Search(query string) HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.Search(query)
	return s.pager.View()
}

// ClearSearch drops the history filter.
func (s *LotteryService) ClearSearch() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.ClearSearch()
	return s.pager.View()
}

// NextPage moves the history forward one page.
func (s *LotteryService) NextPage() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.NextPage()
	return s.pager.View()
}

// PreviousPage moves the history back one page.
func (s *LotteryService) PreviousPage() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.PreviousPage()
	return s.pager.View()
}

// GoToPage jumps to a history page, clamped to the valid range.
func (s *LotteryService) GoToPage(page int) HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.GoTo(page)
	return s.pager.View()
}

// Close aborts any in-flight draw and rejects further mutations.
func (s *LotteryService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// Abort may wait for a settling draw whose callback needs s.mu.
	if s.spinner.Abort() {
		logger.Infof("Aborted in-flight draw on shutdown")
	}
}

func (s *LotteryService) cue(settings models.Settings, cue audio.Cue) {
	if settings.SoundEnabled {
		audio.Fire(s.player, cue)
	}
}
