package ical

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ErrMalformedFeed is returned when a calendar document cannot be parsed.
var ErrMalformedFeed = errors.New("malformed calendar feed")

// Clean drops every event that ended before now and strips the attendee list
// from the events that remain, leaving all other fields and the event order
// intact. Some calendar publishers (notably Google) emit feeds that Outlook
// refuses to import when events carry attendees; stripping them makes the
// feed safe to re-subscribe.
//
// Unparsable input fails with ErrMalformedFeed and emits nothing.
func Clean(doc []byte, now time.Time) ([]byte, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	kept := make([]ics.Component, 0, len(cal.Components))
	for _, comp := range cal.Components {
		ev, ok := comp.(*ics.VEvent)
		if !ok {
			kept = append(kept, comp)
			continue
		}
		if eventOver(ev, now) {
			continue
		}
		stripAttendees(ev)
		kept = append(kept, ev)
	}
	cal.Components = kept

	return []byte(cal.Serialize()), nil
}

// eventOver reports whether the event is strictly in the past. Events whose
// end cannot be determined fall back to their start time; events with no
// usable times at all are kept.
func eventOver(ev *ics.VEvent, now time.Time) bool {
	end, err := ev.GetEndAt()
	if err != nil {
		end, err = ev.GetStartAt()
	}
	if err != nil {
		return false
	}
	return end.Before(now)
}

func stripAttendees(ev *ics.VEvent) {
	props := ev.Properties[:0]
	for _, p := range ev.Properties {
		if p.IANAToken == string(ics.ComponentPropertyAttendee) {
			continue
		}
		props = append(props, p)
	}
	ev.Properties = props
}
