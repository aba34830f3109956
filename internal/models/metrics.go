package models

import "time"

// SystemMetrics is a JSON snapshot of in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ImportsAccepted          uint64    `json:"imports_accepted"`
	ImportsRejected          uint64    `json:"imports_rejected"`
	ImportedEmployees        uint64    `json:"imported_employees"`
	MailsSent                uint64    `json:"mails_sent"`
	MailsFailed              uint64    `json:"mails_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
