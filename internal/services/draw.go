package services

import (
	"math"
	"slices"

	"luckydraw/internal/models"
)

// Source is the random source the draw uses.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Universe returns every eligible number of settings, ascending. An interval
// that is empty, larger than models.MaxParticipants or not representable as
// int yields no numbers.
func Universe(settings models.Settings) []int {
	if !drawable(settings) {
		return nil
	}
	numbers := make([]int, settings.NumOfParticipants)
	for i := range numbers {
		numbers[i] = settings.StartNumber + i
	}
	return numbers
}

// Remaining returns the eligible numbers that are not in drawn, ascending.
func Remaining(settings models.Settings, drawn []int) []int {
	taken := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		taken[n] = struct{}{}
	}
	universe := Universe(settings)
	remaining := universe[:0]
	for _, n := range universe {
		if _, ok := taken[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	return remaining
}

// RemainingCount returns len(Remaining(settings, drawn)) without building
// the interval.
func RemainingCount(settings models.Settings, drawn []int) int {
	if !drawable(settings) {
		return 0
	}
	seen := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		if settings.Contains(n) {
			seen[n] = struct{}{}
		}
	}
	return settings.NumOfParticipants - len(seen)
}

func drawable(settings models.Settings) bool {
	n := settings.NumOfParticipants
	return n > 0 && n <= models.MaxParticipants && settings.StartNumber <= math.MaxInt-n
}

// Shuffle permutes numbers in place with Fisher-Yates.
func Shuffle(numbers []int, rng Source) {
	for i := len(numbers) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		numbers[i], numbers[j] = numbers[j], numbers[i]
	}
}

// Draw selects up to WinnerPerSpin numbers that are not in drawn, bounded by
// what is left of the MaxWinners budget. The result carries no timestamp;
// the caller stamps it when the draw settles.
func Draw(settings models.Settings, drawn []int, rng Source) models.DrawOutcome {
	remaining := Remaining(settings, drawn)
	Shuffle(remaining, rng)

	k := min(len(remaining), settings.MaxWinners-len(drawn), settings.WinnerPerSpin)
	if k <= 0 {
		reason := models.ReasonCapReached
		if len(remaining) == 0 {
			reason = models.ReasonExhausted
		}
		return models.DrawOutcome{Winners: []int{}, Reason: reason}
	}

	winners := slices.Clone(remaining[:k])
	slices.Sort(winners)
	return models.DrawOutcome{Winners: winners, Reason: models.ReasonDrawn}
}
