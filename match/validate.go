package match

import (
	"encoding/json"
	"strings"

	"github.com/icco/minesduel"
)

const (
	maxBoardSide     = 100
	maxCountdownSecs = 3600
	maxDifficulty    = 32
	maxNameLen       = 50
	maxProgressBytes = 64 << 10

	defaultListLimit = 20
	maxListLimit     = 100
)

func (p *CreateParams) validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return minesduel.Invalidf("width and height must be positive")
	case p.Width > maxBoardSide || p.Height > maxBoardSide:
		return minesduel.Invalidf("board sides are limited to %d", maxBoardSide)
	case p.Mines <= 0:
		return minesduel.Invalidf("mines must be positive")
	case p.Mines >= p.Width*p.Height:
		return minesduel.Invalidf("too many mines for a %dx%d board", p.Width, p.Height)
	case p.CountdownSecs < 0 || p.CountdownSecs > maxCountdownSecs:
		return minesduel.Invalidf("countdown_secs must be between 1 and %d", maxCountdownSecs)
	case len(p.Difficulty) > maxDifficulty:
		return minesduel.Invalidf("difficulty is limited to %d characters", maxDifficulty)
	case len(p.Seed) > 64:
		return minesduel.Invalidf("seed is limited to 64 characters")
	}
	return validName(p.Name)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return minesduel.Invalidf("player name is required")
	}
	if len(name) > maxNameLen {
		return minesduel.Invalidf("player name is limited to %d characters", maxNameLen)
	}
	return nil
}

func (p *StepParams) validate() error {
	if _, err := minesduel.ParseAction(string(p.Action)); err != nil {
		return err
	}
	if p.X < 0 || p.Y < 0 {
		return minesduel.Invalidf("coordinates must not be negative")
	}
	if p.ElapsedMs != nil && *p.ElapsedMs < 0 {
		return minesduel.Invalidf("elapsed_ms must not be negative")
	}
	return nil
}

func (p *FinishParams) validate() error {
	if _, err := minesduel.ParseOutcome(string(p.Outcome)); err != nil {
		return err
	}
	if p.DurationMs != nil && *p.DurationMs < 0 {
		return minesduel.Invalidf("duration_ms must not be negative")
	}
	if p.StepsCount != nil && *p.StepsCount < 0 {
		return minesduel.Invalidf("steps_count must not be negative")
	}
	if len(p.Progress) > maxProgressBytes {
		return minesduel.Invalidf("progress is limited to %d bytes", maxProgressBytes)
	}
	if len(p.Progress) > 0 && !json.Valid(p.Progress) {
		return minesduel.Invalidf("progress must be JSON")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
