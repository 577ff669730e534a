package camera

import "fmt"

// Easing maps linear progress in [0, 1] to eased progress.
type Easing string

const (
	Linear       Easing = "linear"
	EaseIn       Easing = "easeIn"
	EaseOut      Easing = "easeOut"
	EaseInOut    Easing = "easeInOut"
	CubicIn      Easing = "cubicIn"
	CubicOut     Easing = "cubicOut"
	CubicInOut   Easing = "cubicInOut"
	DefaultEasing       = CubicOut
)

var easings = []Easing{Linear, EaseIn, EaseOut, EaseInOut, CubicIn, CubicOut, CubicInOut}

// ParseEasing validates a curve name. An empty name selects DefaultEasing.
func ParseEasing(s string) (Easing, error) {
	if s == "" {
		return DefaultEasing, nil
	}
	for _, e := range easings {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("camera: unknown easing %q", s)
}

// Apply evaluates the curve at t. Unknown curves fall back to linear.
func (e Easing) Apply(t float64) float64 {
	switch e {
	case EaseIn:
		return t * t

	case EaseOut:
		return t * (2 - t)

	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t

	case CubicIn:
		return t * t * t

	case CubicOut:
		t2 := 1 - t
		return 1 - t2*t2*t2

	case CubicInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		t2 := -2*t + 2
		return 1 - t2*t2*t2/2

	default:
		return t
	}
}
