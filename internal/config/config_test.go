package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.StaleAfter != 14*24*time.Hour {
		t.Errorf("StaleAfter = %v, want 14 days", cfg.StaleAfter)
	}
	if cfg.Match.TopN != 5 {
		t.Errorf("TopN = %d, want 5", cfg.Match.TopN)
	}
	if cfg.Match.ScoreFloor != 0.2 {
		t.Errorf("ScoreFloor = %v, want 0.2", cfg.Match.ScoreFloor)
	}
	if cfg.Match.ExactMin != 0.8 || cfg.Match.ProbableMin != 0.6 || cfg.Match.PossibleMin != 0.4 {
		t.Errorf("tier cut points = %v/%v/%v, want 0.8/0.6/0.4",
			cfg.Match.ExactMin, cfg.Match.ProbableMin, cfg.Match.PossibleMin)
	}
	if cfg.Compliance.HostVolumeFlag != 3 || cfg.Compliance.HostVolumeHigh != 5 {
		t.Errorf("host volume thresholds = %d/%d, want 3/5",
			cfg.Compliance.HostVolumeFlag, cfg.Compliance.HostVolumeHigh)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MATCH_TOP_N", "10")
	t.Setenv("JOB_TIMEOUT", "30s")
	t.Setenv("TAX_PER_NIGHT_XOF", "1500")

	cfg := Load()

	if cfg.Match.TopN != 10 {
		t.Errorf("TopN = %d, want 10", cfg.Match.TopN)
	}
	if cfg.JobTimeout != 30*time.Second {
		t.Errorf("JobTimeout = %v, want 30s", cfg.JobTimeout)
	}
	if cfg.Compliance.TaxPerNightXOF != 1500 {
		t.Errorf("TaxPerNightXOF = %v, want 1500", cfg.Compliance.TaxPerNightXOF)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("MATCH_SCORE_FLOOR", "low")
	t.Setenv("STALE_AFTER", "fortnight")

	cfg := Load()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if cfg.Match.ScoreFloor != 0.2 {
		t.Errorf("ScoreFloor = %v, want default 0.2", cfg.Match.ScoreFloor)
	}
	if cfg.StaleAfter != 14*24*time.Hour {
		t.Errorf("StaleAfter = %v, want default 14 days", cfg.StaleAfter)
	}
}
