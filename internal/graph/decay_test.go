package graph

import (
	"math"
	"testing"
	"time"
)

var refNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRecencyMultiplier_Fresh(t *testing.T) {
	m := RecencyMultiplier(refNow, refNow, DefaultHalfLife)
	if m != 1 {
		t.Errorf("interaction at now should count fully, got %f", m)
	}
}

func TestRecencyMultiplier_OneHalfLife(t *testing.T) {
	m := RecencyMultiplier(refNow.Add(-30*24*time.Hour), refNow, 30*24*time.Hour)
	if math.Abs(m-0.5) > 1e-9 {
		t.Errorf("one half-life old should be 0.5, got %f", m)
	}
}

func TestRecencyMultiplier_TwoHalfLives(t *testing.T) {
	m := RecencyMultiplier(refNow.Add(-48*time.Hour), refNow, 24*time.Hour)
	if math.Abs(m-0.25) > 1e-9 {
		t.Errorf("two half-lives old should be 0.25, got %f", m)
	}
}

func TestRecencyMultiplier_FutureCountsFully(t *testing.T) {
	m := RecencyMultiplier(refNow.Add(time.Hour), refNow, DefaultHalfLife)
	if m != 1 {
		t.Errorf("future interaction should count fully, got %f", m)
	}
}

func TestRecencyMultiplier_DisabledHalfLife(t *testing.T) {
	old := refNow.Add(-10 * 365 * 24 * time.Hour)
	for _, hl := range []time.Duration{0, -time.Hour} {
		if m := RecencyMultiplier(old, refNow, hl); m != 1 {
			t.Errorf("half-life %v should disable decay, got %f", hl, m)
		}
	}
}

func TestRecencyMultiplier_NeverZero(t *testing.T) {
	ancient := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	m := RecencyMultiplier(ancient, refNow, time.Hour)
	if m <= 0 {
		t.Fatalf("multiplier must stay positive, got %g", m)
	}
	if m != MinRecencyMultiplier {
		t.Errorf("ancient evidence should sit at the floor %g, got %g", MinRecencyMultiplier, m)
	}
}

func TestRecencyMultiplier_DecreasesWithAge(t *testing.T) {
	prev := 1.0
	for days := 1; days <= 720; days *= 3 {
		m := RecencyMultiplier(refNow.Add(-time.Duration(days)*24*time.Hour), refNow, DefaultHalfLife)
		if m > prev {
			t.Errorf("multiplier rose with age at %d days: %f > %f", days, m, prev)
		}
		if m <= 0 || m > 1 {
			t.Errorf("multiplier out of (0,1] at %d days: %f", days, m)
		}
		prev = m
	}
}
