package domain

import "time"

// ScoreDistribution buckets verdict scores.
type ScoreDistribution struct {
	Excellent int `json:"excellent"` // >= 90
	Good      int `json:"good"`      // >= 70
	Fair      int `json:"fair"`      // >= 50
	Poor      int `json:"poor"`      // < 50
}

// Stats summarizes the verdicts of a completed job.
type Stats struct {
	Total             int               `json:"total"`
	Deliverable       int               `json:"deliverable"`
	Undeliverable     int               `json:"undeliverable"`
	Risky             int               `json:"risky"`
	Unknown           int               `json:"unknown"`
	Disposable        int               `json:"disposable"`
	RoleBased         int               `json:"roleBased"`
	FreeProvider      int               `json:"freeProvider"`
	CatchAll          int               `json:"catchAll"`
	SyntaxInvalid     int               `json:"syntaxInvalid"`
	DNSInvalid        int               `json:"dnsInvalid"`
	TypoDetected      int               `json:"typoDetected"`
	AverageScore      float64           `json:"averageScore"`
	ScoreDistribution ScoreDistribution `json:"scoreDistribution"`
	StartedAt         time.Time         `json:"startedAt"`
	CompletedAt       time.Time         `json:"completedAt"`
	TotalDurationMs   int64             `json:"totalDurationMs"`
	AverageDurationMs float64           `json:"averageDurationMs"`
}
