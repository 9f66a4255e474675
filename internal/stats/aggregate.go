// Package stats reduces per-address verdicts into a job summary.
package stats

import (
	"math"
	"time"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

const (
	excellentScore = 90
	goodScore      = 70
	fairScore      = 50
)

// Aggregate summarizes results. Callers must not pass an empty slice; nil is returned if they do.
func Aggregate(results []domain.Verdict, startedAt, completedAt time.Time) *domain.Stats {
	if len(results) == 0 {
		return nil
	}

	s := &domain.Stats{
		Total:       len(results),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}

	scoreSum := 0
	for _, r := range results {
		switch r.State {
		case domain.StateDeliverable:
			s.Deliverable++
		case domain.StateUndeliverable:
			s.Undeliverable++
		case domain.StateRisky:
			s.Risky++
		default:
			s.Unknown++
		}

		if r.Disposable {
			s.Disposable++
		}
		if r.RoleBased {
			s.RoleBased++
		}
		if r.FreeProvider {
			s.FreeProvider++
		}
		if r.CatchAll {
			s.CatchAll++
		}
		if !r.SyntaxValid {
			s.SyntaxInvalid++
		}
		if !r.DNSValid {
			s.DNSInvalid++
		}
		if r.TypoDetected() {
			s.TypoDetected++
		}

		scoreSum += r.Score
		switch {
		case r.Score >= excellentScore:
			s.ScoreDistribution.Excellent++
		case r.Score >= goodScore:
			s.ScoreDistribution.Good++
		case r.Score >= fairScore:
			s.ScoreDistribution.Fair++
		default:
			s.ScoreDistribution.Poor++
		}
	}

	s.AverageScore = round2(float64(scoreSum) / float64(s.Total))

	total := completedAt.Sub(startedAt)
	if total < 0 {
		total = 0
	}
	s.TotalDurationMs = total.Milliseconds()
	s.AverageDurationMs = round2(float64(s.TotalDurationMs) / float64(s.Total))

	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
