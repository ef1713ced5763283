// Package verdict classifies an analysis into the American / not American /
// unclear outcome shown to the user.
package verdict

import (
	"fmt"

	"github.com/anders-m-mygind/masa-app/internal/vision"
)

// Kind is the tri-state classification.
type Kind int

const (
	Indeterminate Kind = iota
	Affirmative
	Negative
)

func (k Kind) String() string {
	switch k {
	case Affirmative:
		return "affirmative"
	case Negative:
		return "negative"
	default:
		return "indeterminate"
	}
}

// Verdict is everything the result and metadata panels need to present a
// classification.
type Verdict struct {
	Kind Kind
	// State is the metadata panel display state: "stop", "up" or "unknown".
	State string
	// ResultState is the result panel state: "yes", "no" or "idle".
	ResultState string
	Label       string
	Pill        string
	Title       string
}

// Interpret maps an analysis to its verdict. Only the is_american answer and
// the country (for the label) are consulted. A nil result is indeterminate.
func Interpret(r *vision.AnalysisResult) Verdict {
	if r == nil {
		return indeterminate()
	}
	country := r.Country
	if country == "" {
		country = vision.UnknownValue
	}

	switch r.IsAmerican {
	case vision.NationalityAmerican:
		return Verdict{
			Kind:        Affirmative,
			State:       "stop",
			ResultState: "yes",
			Label:       fmt.Sprintf("Brand likely American (%s).", country),
			Pill:        "USA",
			Title:       "American brand detected",
		}
	case vision.NationalityForeign:
		return Verdict{
			Kind:        Negative,
			State:       "up",
			ResultState: "no",
			Label:       fmt.Sprintf("Brand likely from %s.", country),
			Pill:        "Not USA",
			Title:       "Non-American brand detected",
		}
	default:
		return indeterminate()
	}
}

func indeterminate() Verdict {
	return Verdict{
		Kind:        Indeterminate,
		State:       "unknown",
		ResultState: "idle",
		Label:       "Origin unclear from image.",
		Pill:        "Unknown",
		Title:       "Origin unclear",
	}
}
