package forecast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSourceUnavailable is returned when the upstream forecast source is
	// unreachable or erroring.
	ErrSourceUnavailable = errors.New("forecast source unavailable")

	// ErrInvalidLocation is returned for coordinates the forecast source does
	// not cover.
	ErrInvalidLocation = errors.New("location not covered by forecast source")
)

// Kind identifies one of the supported calendar classifications.
type Kind string

const (
	KindRain    Kind = "rain"
	KindWarm    Kind = "warm"
	KindCool    Kind = "cool"
	KindComfort Kind = "comfort"
	KindBest    Kind = "best"
	KindAlerts  Kind = "alerts"
)

// Period is one forecaster-supplied sample: a fixed short time span with the
// weather attributes the source predicted for it.
type Period struct {
	Start        time.Time
	End          time.Time // exclusive
	TemperatureF float64

	// PoP is the probability of precipitation in percent (0-100).
	// Nil when the source omitted it.
	PoP *float64

	// DewpointC is the dewpoint in Celsius. Nil when the source omitted it.
	DewpointC *float64

	// WindSpeed is the source's unit-bearing string, e.g. "10 mph".
	WindSpeed string

	ShortForecast string
	IsDaytime     bool

	// Updated is when the source generated the forecast this period came from.
	Updated time.Time
}

// PoPValue returns the probability of precipitation, treating absent as 0.
func (p Period) PoPValue() float64 {
	if p.PoP == nil {
		return 0
	}
	return *p.PoP
}

// WindMPH parses the leading number of the wind speed string ("10 mph" -> 10).
// Ranges like "5 to 10 mph" yield the lower bound. Unparsable input yields 0.
func (p Period) WindMPH() float64 {
	fields := strings.Fields(p.WindSpeed)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

// Snapshot bundles the periods from a single forecast fetch.
type Snapshot struct {
	Periods []Period

	// Updated is the source's forecast generation time.
	Updated time.Time

	// RetrievedAt is when we fetched the forecast from the source.
	RetrievedAt time.Time
}

// EventInterval is a contiguous span of time during which a classification
// predicate held, merged from consecutive satisfying periods.
type EventInterval struct {
	Start time.Time
	End   time.Time

	MinTempF float64
	MaxTempF float64
	MinPoP   float64
	MaxPoP   float64

	// ShortForecast is the text of the first contributing period.
	ShortForecast string

	// Updated is the newest forecast generation time among contributing periods.
	Updated time.Time

	// RetrievedAt is when the enclosing snapshot was fetched.
	RetrievedAt time.Time
}

// BestOfDayRecord is the most desirable period of one calendar day together
// with the tuple that ranked it.
type BestOfDayRecord struct {
	Period Period
	Rank   Rank
}

// Rank is the lexicographic desirability key: lower is better on every field.
type Rank struct {
	PoP            float64
	TempDiscomfort float64
	WindMPH        float64
}

// Less reports whether r ranks strictly better than other.
func (r Rank) Less(other Rank) bool {
	if r.PoP != other.PoP {
		return r.PoP < other.PoP
	}
	if r.TempDiscomfort != other.TempDiscomfort {
		return r.TempDiscomfort < other.TempDiscomfort
	}
	return r.WindMPH < other.WindMPH
}

// Coordinate is a (latitude, longitude) pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Gridpoint identifies a forecast grid cell: an NWS office plus grid indices.
type Gridpoint struct {
	Office string
	GridX  int
	GridY  int
}

// String renders the gridpoint in the "MTR/93,86" form used in forecast URLs.
func (g Gridpoint) String() string {
	return fmt.Sprintf("%s/%d,%d", g.Office, g.GridX, g.GridY)
}

// ParseGridpoint parses the "MTR/93,86" form.
func ParseGridpoint(s string) (Gridpoint, error) {
	office, coords, ok := strings.Cut(s, "/")
	if !ok || office == "" {
		return Gridpoint{}, fmt.Errorf("invalid gridpoint %q", s)
	}
	xs, ys, ok := strings.Cut(coords, ",")
	if !ok {
		return Gridpoint{}, fmt.Errorf("invalid gridpoint %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Gridpoint{}, fmt.Errorf("invalid gridpoint %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Gridpoint{}, fmt.Errorf("invalid gridpoint %q: %w", s, err)
	}
	return Gridpoint{Office: office, GridX: x, GridY: y}, nil
}

// Alert is one active weather alert from the source.
type Alert struct {
	Event       string
	Onset       time.Time
	Ends        time.Time
	Description string
}
