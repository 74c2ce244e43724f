package dosing

import (
	"regexp"
	"strconv"
)

// Interval patterns found in dosing notes
const (
	PatternMaintenance = "maintenance"
	PatternCycle       = "cycle"
	PatternCode        = "code"
)

const daysPerMonth = 30.0

var (
	maintenanceRe = regexp.MustCompile(`maintenance\b(?:[^.;]|\.\d)*?\bevery\s+(\d+(?:\.\d+)?)\s*(day|week|month)s?\b`)
	cycleRe       = regexp.MustCompile(`\bdays?\s+(\d+(?:\s*(?:,|and|&)\s*\d+)*)\s+(?:of|in)\s+(?:each\s+|every\s+|an?\s+)?(\d+)\s*-?\s*days?\s+cycles?\b`)
	codeRe        = regexp.MustCompile(`\bq\s?(\d+(?:\.\d+)?)\s*(d|days?|w|wks?|weeks?|m|mo|months?)\b`)
	numberRe      = regexp.MustCompile(`\d+`)
)

// InferredInterval is a dosing interval read from free-text notes
type InferredInterval struct {
	Days    float64
	Pattern string
	Match   string
}

// InferInterval looks for an interval in free-text notes. Explicit
// maintenance statements win over cycle descriptions, which win over qXw codes.
func InferInterval(notes string) (InferredInterval, bool) {
	text := normalizeText(notes)
	if text == "" {
		return InferredInterval{}, false
	}

	if m := maintenanceRe.FindStringSubmatch(text); m != nil {
		if days, ok := toDays(m[1], m[2]); ok {
			return InferredInterval{Days: days, Pattern: PatternMaintenance, Match: m[0]}, true
		}
	}

	if m := cycleRe.FindStringSubmatch(text); m != nil {
		cycle, err := strconv.ParseFloat(m[2], 64)
		doses := len(numberRe.FindAllString(m[1], -1))
		if err == nil && cycle > 0 && doses > 0 {
			return InferredInterval{Days: cycle / float64(doses), Pattern: PatternCycle, Match: m[0]}, true
		}
	}

	if m := codeRe.FindStringSubmatch(text); m != nil {
		if days, ok := toDays(m[1], m[2]); ok {
			return InferredInterval{Days: days, Pattern: PatternCode, Match: m[0]}, true
		}
	}

	return InferredInterval{}, false
}

func toDays(value, unit string) (float64, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n <= 0 {
		return 0, false
	}

	switch unit[0] {
	case 'd':
		return n, true
	case 'w':
		return n * 7, true
	case 'm':
		return n * daysPerMonth, true
	}
	return 0, false
}

// overrideThreshold is how far an inferred interval may diverge from the
// declared one before it replaces it.
func overrideThreshold(pattern string) float64 {
	if pattern == PatternCycle {
		return 1.0
	}
	return 7.0
}
