package forecast

// Thresholds holds the named classification limits. Predicates are pure
// functions of (period, thresholds); nothing reads these from package scope.
type Thresholds struct {
	// RainMinPoP is the precipitation probability (percent) above which a
	// period counts as rainy.
	RainMinPoP float64

	// WarmMinTempF: at or above this a period counts as warm.
	WarmMinTempF float64

	// CoolMaxTempF and CoolMaxDewpointC: at or below both a period counts as
	// cool (and dry enough to open windows).
	CoolMaxTempF     float64
	CoolMaxDewpointC float64

	// BestRefTempF is the temperature the best-of-day ranking treats as ideal.
	BestRefTempF float64
}

// DefaultThresholds returns the stock classification limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RainMinPoP:       33,
		WarmMinTempF:     68,
		CoolMaxTempF:     72,
		CoolMaxDewpointC: 15.5556,
		BestRefTempF:     70,
	}
}

// Predicate decides whether a single period belongs in a calendar.
type Predicate func(Period) bool

// Classifier pairs a predicate with an optional block-compatibility rule.
type Classifier struct {
	Match Predicate

	// SameBlock, when set, additionally requires a satisfying period to be
	// compatible with the first period of the open block. The rain calendar
	// uses it to split blocks when the short forecast text changes, so
	// "Rain Showers" and "Thunderstorms" become separate events.
	SameBlock func(first, p Period) bool
}

// Rainy reports periods whose precipitation probability exceeds the threshold.
func Rainy(t Thresholds) Predicate {
	return func(p Period) bool { return p.PoPValue() > t.RainMinPoP }
}

// Warm reports periods at or above the warm temperature threshold.
func Warm(t Thresholds) Predicate {
	return func(p Period) bool { return p.TemperatureF >= t.WarmMinTempF }
}

// Cool reports periods at or below both the cool temperature and dewpoint
// ceilings. A period with no dewpoint reading is never cool, since its
// dryness cannot be verified.
func Cool(t Thresholds) Predicate {
	return func(p Period) bool {
		return p.TemperatureF <= t.CoolMaxTempF &&
			p.DewpointC != nil && *p.DewpointC <= t.CoolMaxDewpointC
	}
}

// Comfortable reports periods inside the warm-to-cool temperature band.
func Comfortable(t Thresholds) Predicate {
	return func(p Period) bool {
		return p.TemperatureF >= t.WarmMinTempF && p.TemperatureF <= t.CoolMaxTempF
	}
}

// ClassifierForKind maps the closed set of interval calendar kinds to their
// classifiers. Kinds without an interval classifier (best, alerts) return
// ok=false.
func ClassifierForKind(kind Kind, t Thresholds) (Classifier, bool) {
	switch kind {
	case KindRain:
		return Classifier{
			Match: Rainy(t),
			SameBlock: func(first, p Period) bool {
				return first.ShortForecast == p.ShortForecast
			},
		}, true
	case KindWarm:
		return Classifier{Match: Warm(t)}, true
	case KindCool:
		return Classifier{Match: Cool(t)}, true
	case KindComfort:
		return Classifier{Match: Comfortable(t)}, true
	default:
		return Classifier{}, false
	}
}
