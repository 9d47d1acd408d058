// Package ical renders forecast data as iCalendar documents and sanitizes
// third-party calendar feeds.
package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/forecal/forecal/internal/common"
	"github.com/forecal/forecal/internal/forecast"
)

const prodID = "-//forecal//weather calendars//EN"

// ContentType is the media type for rendered calendars.
const ContentType = "text/calendar; charset=utf-8"

// Renderer converts event intervals, best-of-day picks, and alerts into
// serialized iCalendar documents.
type Renderer struct {
	tz *time.Location
}

// NewRenderer creates a Renderer that formats human-readable timestamps in tz.
func NewRenderer(tz *time.Location) *Renderer {
	if tz == nil {
		tz = time.UTC
	}
	return &Renderer{tz: tz}
}

// IntervalCalendar renders one event per synthesized interval.
func (r *Renderer) IntervalCalendar(kind forecast.Kind, intervals []forecast.EventInterval) []byte {
	cal := newCalendar()
	for _, iv := range intervals {
		name := intervalName(kind, iv)
		ev := cal.AddEvent(common.HashUID(name + iv.Start.Format(time.RFC3339) + iv.End.Format(time.RFC3339)))
		ev.SetDtStampTime(iv.RetrievedAt.UTC())
		ev.SetSummary(escapeText(name))
		ev.SetStartAt(iv.Start)
		ev.SetEndAt(iv.End)
		ev.SetDescription(escapeText(fmt.Sprintf(
			"%sF\n%s%% chance of rain\nForecast updated %s",
			common.FormatRange(iv.MinTempF, iv.MaxTempF),
			common.FormatRange(iv.MinPoP, iv.MaxPoP),
			common.FormatTimestamp(iv.Updated, r.tz),
		)))
	}
	return []byte(cal.Serialize())
}

// BestCalendar renders one event per day for the selected best periods.
func (r *Renderer) BestCalendar(records []forecast.BestOfDayRecord, retrievedAt time.Time) []byte {
	cal := newCalendar()
	for _, rec := range records {
		p := rec.Period
		day := p.Start.In(r.tz).Format("2006-01-02")
		ev := cal.AddEvent(common.HashUID(day))
		ev.SetDtStampTime(retrievedAt.UTC())
		ev.SetSummary(escapeText(p.ShortForecast))
		ev.SetStartAt(p.Start)
		ev.SetEndAt(p.End)
		ev.SetDescription(escapeText(fmt.Sprintf(
			"%gF, %g%% chance of rain\nForecast updated %s",
			p.TemperatureF,
			p.PoPValue(),
			common.FormatTimestamp(p.Updated, r.tz),
		)))
	}
	return []byte(cal.Serialize())
}

// AlertCalendar renders one event per active alert.
func (r *Renderer) AlertCalendar(alerts []forecast.Alert) []byte {
	cal := newCalendar()
	for _, a := range alerts {
		ev := cal.AddEvent(common.HashUID(a.Event + a.Onset.Format(time.RFC3339)))
		ev.SetDtStampTime(a.Onset.UTC())
		ev.SetSummary(escapeText(a.Event))
		ev.SetStartAt(a.Onset)
		ev.SetEndAt(a.Ends)
		ev.SetDescription(escapeText(a.Description))
	}
	return []byte(cal.Serialize())
}

// escapeText escapes the characters RFC 5545 reserves in TEXT values; the
// underlying serializer writes values verbatim.
func escapeText(s string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	).Replace(s)
}

func newCalendar() *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	return cal
}

func intervalName(kind forecast.Kind, iv forecast.EventInterval) string {
	switch kind {
	case forecast.KindRain:
		return iv.ShortForecast
	case forecast.KindWarm:
		return "Open 🪟 for ♨️"
	case forecast.KindCool:
		return "Open 🪟 for 🆒"
	case forecast.KindComfort:
		return "Open 🪟"
	default:
		return iv.ShortForecast
	}
}
