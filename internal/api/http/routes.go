package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/forecal/forecal/internal/forecast"
	"github.com/forecal/forecal/internal/ical"
	"github.com/forecal/forecal/internal/observability"
	"github.com/forecal/forecal/internal/safeurl"
	"github.com/forecal/forecal/internal/soloize"
)

var validate = validator.New()

// Deps bundles everything the HTTP handlers need.
type Deps struct {
	Service  *forecast.Service
	Soloize  *soloize.Service
	Renderer *ical.Renderer
	Metrics  *observability.Metrics

	DefaultGrid      forecast.Gridpoint
	DefaultAlertZone string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/", handleIndex)

	// Fixed-location legacy routes for the default grid.
	app.Get("/weather.ics", deps.calendarForGrid(forecast.KindRain))
	app.Get("/warm.ics", deps.calendarForGrid(forecast.KindWarm))
	app.Get("/cool.ics", deps.calendarForGrid(forecast.KindCool))
	app.Get("/comfort.ics", deps.calendarForGrid(forecast.KindComfort))
	app.Get("/bestweather.ics", deps.handleBest)
	app.Get("/alerts.ics", deps.handleAlerts)

	app.Get("/soloize", deps.handleSoloize)
	app.Get("/simplify/:coords", deps.handleSimplify)
	app.Get("/:calendar/:coords", deps.handleCalendarAt)
}

func handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(indexPage)
}

// calendarForGrid serves an interval calendar for the configured default grid.
func (d Deps) calendarForGrid(kind forecast.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d.Metrics.CalendarRequest(string(kind))

		intervals, _, err := d.Service.Intervals(c.Context(), d.DefaultGrid, kind)
		if err != nil {
			return mapError(err)
		}
		return sendCalendar(c, d.Renderer.IntervalCalendar(kind, intervals))
	}
}

func (d Deps) handleBest(c *fiber.Ctx) error {
	d.Metrics.CalendarRequest(string(forecast.KindBest))

	records, snap, err := d.Service.Best(c.Context(), d.DefaultGrid)
	if err != nil {
		return mapError(err)
	}
	return sendCalendar(c, d.Renderer.BestCalendar(records, snap.RetrievedAt))
}

func (d Deps) handleAlerts(c *fiber.Ctx) error {
	d.Metrics.CalendarRequest(string(forecast.KindAlerts))

	alerts, err := d.Service.Alerts(c.Context(), d.DefaultAlertZone)
	if err != nil {
		return mapError(err)
	}
	return sendCalendar(c, d.Renderer.AlertCalendar(alerts))
}

// handleCalendarAt serves any calendar kind for an arbitrary coordinate,
// e.g. GET /rain/37.39,-122.08.
func (d Deps) handleCalendarAt(c *fiber.Ctx) error {
	kind := forecast.Kind(c.Params("calendar"))
	coords, err := parseCoords(c.Params("coords"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	d.Metrics.CalendarRequest(string(kind))

	switch kind {
	case forecast.KindRain, forecast.KindWarm, forecast.KindCool, forecast.KindComfort:
		gp, err := d.Service.Gridpoint(c.Context(), coords.Lat, coords.Lon)
		if err != nil {
			return mapError(err)
		}
		intervals, _, err := d.Service.Intervals(c.Context(), gp, kind)
		if err != nil {
			return mapError(err)
		}
		return sendCalendar(c, d.Renderer.IntervalCalendar(kind, intervals))

	case forecast.KindBest:
		gp, err := d.Service.Gridpoint(c.Context(), coords.Lat, coords.Lon)
		if err != nil {
			return mapError(err)
		}
		records, snap, err := d.Service.Best(c.Context(), gp)
		if err != nil {
			return mapError(err)
		}
		return sendCalendar(c, d.Renderer.BestCalendar(records, snap.RetrievedAt))

	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown calendar")
	}
}

func (d Deps) handleSimplify(c *fiber.Ctx) error {
	coords, err := parseCoords(c.Params("coords"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	simplified := d.Service.SimplifyCoordinate(c.Context(), coords.Lat, coords.Lon)
	return c.JSON(simplified)
}

func (d Deps) handleSoloize(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing 'url' parameter")
	}

	doc, err := d.Soloize.Soloize(c.Context(), rawURL)
	if err != nil {
		return mapError(err)
	}
	return sendCalendar(c, doc)
}

func sendCalendar(c *fiber.Ctx, doc []byte) error {
	c.Set(fiber.HeaderContentType, ical.ContentType)
	return c.Send(doc)
}

// mapError translates domain failures into HTTP statuses: caller mistakes
// are 400s, upstream trouble is a 502.
func mapError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrInvalidLocation),
		errors.Is(err, safeurl.ErrInvalidURL),
		errors.Is(err, safeurl.ErrUnsafeTarget),
		errors.Is(err, ical.ErrMalformedFeed):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, forecast.ErrSourceUnavailable),
		errors.Is(err, soloize.ErrFetchFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return err
}

// coordsParam holds a parsed coordinate pair from the URL path.
type coordsParam struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

func parseCoords(raw string) (coordsParam, error) {
	var p coordsParam

	latStr, lonStr, ok := strings.Cut(raw, ",")
	if !ok {
		return p, errors.New("coordinates must be 'lat,lon'")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return p, errors.New("invalid latitude")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return p, errors.New("invalid longitude")
	}

	p.Lat, p.Lon = lat, lon
	if err := validate.Struct(p); err != nil {
		return p, errors.New("coordinates out of range")
	}
	return p, nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>forecal</title></head>
<body>
<h1>forecal</h1>
<p>Weather forecasts as calendar subscriptions.</p>
<ul>
<li><a href="/weather.ics">/weather.ics</a> — rain events</li>
<li><a href="/warm.ics">/warm.ics</a> — warm spells</li>
<li><a href="/cool.ics">/cool.ics</a> — cool, dry spells</li>
<li><a href="/comfort.ics">/comfort.ics</a> — comfortable temperatures</li>
<li><a href="/bestweather.ics">/bestweather.ics</a> — the best hour of each day</li>
<li><a href="/alerts.ics">/alerts.ics</a> — active weather alerts</li>
<li>/rain/&lt;lat&gt;,&lt;lon&gt; — any calendar at a coordinate</li>
<li>/simplify/&lt;lat&gt;,&lt;lon&gt; — shortest equivalent coordinate</li>
<li>/soloize?url=&lt;feed&gt; — strip past events and attendees from a feed</li>
</ul>
</body>
</html>
`
