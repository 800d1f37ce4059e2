package cron

import (
	"testing"
	"time"

	"bookline/config"
)

func TestSweepMaxAge(t *testing.T) {
	old := config.AppConfig.SweepMaxAgeMin
	defer func() { config.AppConfig.SweepMaxAgeMin = old }()

	config.AppConfig.SweepMaxAgeMin = 45
	if got := sweepMaxAge(); got != 45*time.Minute {
		t.Fatalf("sweepMaxAge = %v, want 45m", got)
	}

	config.AppConfig.SweepMaxAgeMin = 0
	if got := sweepMaxAge(); got != defaultSweepMaxAge {
		t.Fatalf("sweepMaxAge = %v, want the %v default", got, defaultSweepMaxAge)
	}
}
