package forecast

import "time"

// SelectBest picks the single most desirable daytime period for each calendar
// day present in the input. Days are bounded by local midnight in tz. Ranking
// is lexicographic: precipitation probability, then distance from the
// reference temperature, then wind speed; ties keep the earliest period.
//
// Probabilities at or below the rain threshold are clamped up to it, so all
// low-rain-chance periods rank as equally dry and the choice falls through to
// temperature and wind.
func SelectBest(periods []Period, tz *time.Location, t Thresholds) []BestOfDayRecord {
	var days []string
	best := make(map[string]BestOfDayRecord)

	for _, p := range periods {
		if !p.IsDaytime {
			continue
		}

		day := p.Start.In(tz).Format("2006-01-02")
		rank := rankPeriod(p, t)

		cur, seen := best[day]
		if !seen {
			days = append(days, day)
			best[day] = BestOfDayRecord{Period: p, Rank: rank}
			continue
		}
		if rank.Less(cur.Rank) {
			best[day] = BestOfDayRecord{Period: p, Rank: rank}
		}
	}

	out := make([]BestOfDayRecord, 0, len(days))
	for _, day := range days {
		out = append(out, best[day])
	}
	return out
}

func rankPeriod(p Period, t Thresholds) Rank {
	pop := p.PoPValue()
	if pop < t.RainMinPoP {
		pop = t.RainMinPoP
	}
	discomfort := t.BestRefTempF - p.TemperatureF
	if discomfort < 0 {
		discomfort = -discomfort
	}
	return Rank{
		PoP:            pop,
		TempDiscomfort: discomfort,
		WindMPH:        p.WindMPH(),
	}
}
