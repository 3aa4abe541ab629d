// Package confirm decides whether a detected inscription has settled enough
// to act on.
package confirm

import (
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// ageFallbackPerConfirmation stands in for unknown block timing when only a
// genesis timestamp is available.
const ageFallbackPerConfirmation = 10 * time.Minute

// IsConfirmed applies the confirmation-depth policy. tipHeight may be nil
// when the tip lookup failed; absence of all timing data is conservative and
// never confirms.
func IsConfirmed(candidate model.Candidate, tipHeight *int64, confirmationsRequired int, now time.Time) model.Confirmation {
	if confirmationsRequired <= 0 {
		return model.Confirmation{Confirmed: true, Method: model.ConfirmNone}
	}

	if candidate.GenesisBlockHeight != nil && tipHeight != nil {
		delta := *tipHeight - *candidate.GenesisBlockHeight
		return model.Confirmation{
			Confirmed: delta >= int64(confirmationsRequired),
			Method:    model.ConfirmBlockHeight,
			Detail: map[string]int64{
				"tipHeight":          *tipHeight,
				"genesisBlockHeight": *candidate.GenesisBlockHeight,
				"delta":              delta,
			},
		}
	}

	if candidate.GenesisTimestampMs != nil {
		ageMs := now.UnixMilli() - *candidate.GenesisTimestampMs
		required := max(1, confirmationsRequired)
		requiredAgeMs := int64(required) * ageFallbackPerConfirmation.Milliseconds()
		return model.Confirmation{
			Confirmed: ageMs >= requiredAgeMs,
			Method:    model.ConfirmAgeFallback,
			Detail: map[string]int64{
				"ageMs":         ageMs,
				"requiredAgeMs": requiredAgeMs,
			},
		}
	}

	return model.Confirmation{Confirmed: false, Method: model.ConfirmUnavailable}
}
