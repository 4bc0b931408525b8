package profile

import (
	"encoding/json"
	"strings"
)

// EstimateFieldConfidence scores a single proposed field value in isolation
// on a 0-100 scale. It is a heuristic proxy for specificity, not a
// correctness judgment: longer free text and plausible positive numbers
// score higher. Absence always scores 0.
func EstimateFieldConfidence(value any) float64 {
	if value == nil {
		return 0
	}

	switch v := value.(type) {
	case string:
		return scoreString(v)
	case *string:
		if v == nil {
			return 0
		}
		return scoreString(*v)
	case int:
		return scoreNumber(float64(v))
	case int64:
		return scoreNumber(float64(v))
	case float64:
		return scoreNumber(v)
	case *int:
		if v == nil {
			return 0
		}
		return scoreNumber(float64(*v))
	case *int64:
		if v == nil {
			return 0
		}
		return scoreNumber(float64(*v))
	case []string:
		if len(v) == 0 {
			return 0
		}
		return 70
	case []Executive:
		if len(v) == 0 {
			return 0
		}
		return 70
	case []FundingRound:
		if len(v) == 0 {
			return 0
		}
		return 70
	default:
		return scoreOpaque(value)
	}
}

// scoreString buckets free text by length: more specific text scores
// higher, capped at 90.
func scoreString(s string) float64 {
	n := len(strings.TrimSpace(s))
	switch {
	case n == 0:
		return 0
	case n < 3:
		return 30
	case n < 10:
		return 65
	case n < 50:
		return 75
	case n < 200:
		return 85
	default:
		return 90
	}
}

// scoreNumber rewards positive magnitudes; non-positive numbers are almost
// certainly extraction noise for the fields this core tracks.
func scoreNumber(f float64) float64 {
	if f <= 0 {
		return 10
	}
	return 75
}

// scoreOpaque handles structured value objects (tech stack, financials,
// funding) by checking they serialize to something non-trivial.
func scoreOpaque(v any) float64 {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	s := string(raw)
	if s == "null" || s == "{}" || s == "[]" || s == `""` {
		return 0
	}
	if len(s) < 20 {
		return 50
	}
	return 70
}
