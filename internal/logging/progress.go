// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package logging

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultProgressInterval is the minimum gap between two progress lines.
const DefaultProgressInterval = 2 * time.Second

// ProgressLogger writes throttled "bytes processed" lines for a long stage.
// The first report and the final report (processed == total) are always
// written; reports in between are written at most once per interval.
type ProgressLogger struct {
	logger    zerolog.Logger
	stage     string
	sometimes rate.Sometimes
}

// NewProgressLogger returns a ProgressLogger for stage.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewProgressLogger(logger zerolog.Logger, stage string, interval time.Duration) *ProgressLogger {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressLogger{
		logger:    logger,
		stage:     stage,
		sometimes: rate.Sometimes{First: 1, Interval: interval},
	}
}

// Report logs processed/total bytes, subject to throttling.
func (p *ProgressLogger) Report(processed, total int64) {
	if total > 0 && processed >= total {
		p.write(processed, total)
		return
	}
	p.sometimes.Do(func() { p.write(processed, total) })
}

func (p *ProgressLogger) write(processed, total int64) {
	event := p.logger.Debug().
		Str("stage", p.stage).
		Int64("processed_bytes", processed).
		Int64("total_bytes", total)
	if total > 0 {
		event = event.Float64("percent", float64(processed)*100/float64(total))
	}
	event.Msg("Progress")
}
