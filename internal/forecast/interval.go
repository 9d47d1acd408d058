package forecast

// Synthesize scans periods in time order and merges runs of consecutive
// satisfying periods into event intervals. A non-satisfying period, a time
// gap, or a SameBlock mismatch closes the open interval; satisfying periods
// separated by any of those are never merged. Output intervals are
// non-overlapping, sorted by start, and maximal under the classifier.
func Synthesize(periods []Period, c Classifier) []EventInterval {
	var out []EventInterval
	var open *EventInterval
	var first Period

	for _, p := range periods {
		if !c.Match(p) {
			if open != nil {
				out = append(out, *open)
				open = nil
			}
			continue
		}

		// A gap between this period and the open interval means missing
		// samples, not observed non-matching weather; it still breaks the run.
		extendable := open != nil &&
			!p.Start.After(open.End) &&
			(c.SameBlock == nil || c.SameBlock(first, p))

		if !extendable {
			if open != nil {
				out = append(out, *open)
			}
			iv := seedInterval(p)
			open = &iv
			first = p
			continue
		}

		open.End = p.End
		open.MinTempF = min(open.MinTempF, p.TemperatureF)
		open.MaxTempF = max(open.MaxTempF, p.TemperatureF)
		open.MinPoP = min(open.MinPoP, p.PoPValue())
		open.MaxPoP = max(open.MaxPoP, p.PoPValue())
		if p.Updated.After(open.Updated) {
			open.Updated = p.Updated
		}
	}

	if open != nil {
		out = append(out, *open)
	}
	return out
}

// Intervals synthesizes event intervals from the snapshot and stamps each
// with the snapshot's retrieval time.
func (s Snapshot) Intervals(c Classifier) []EventInterval {
	out := Synthesize(s.Periods, c)
	for i := range out {
		out[i].RetrievedAt = s.RetrievedAt
	}
	return out
}

func seedInterval(p Period) EventInterval {
	pop := p.PoPValue()
	return EventInterval{
		Start:         p.Start,
		End:           p.End,
		MinTempF:      p.TemperatureF,
		MaxTempF:      p.TemperatureF,
		MinPoP:        pop,
		MaxPoP:        pop,
		ShortForecast: p.ShortForecast,
		Updated:       p.Updated,
	}
}
