// Package dashboard runs the refresh cycles behind the weather dashboard.
//
// A cycle is started by one of the triggers (locate, locate at coordinates,
// search by city) and runs three sequential stages: resolve the location,
// fetch current conditions, then fetch and sample the forecast series. Each
// stage commits a new immutable Snapshot. Every cycle holds a token; when a
// newer cycle has started, the older cycle's commits are discarded and it
// returns ErrSuperseded, so a slow response can never overwrite the state
// of a later search.
//
// Lookup failures (city not found, geolocation denied) leave the location
// and weather untouched and emit a Notification. Upstream failures are
// logged and leave only the affected section absent.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/geolocation"
	"weather-dashboard/models"
	"weather-dashboard/sampling"

	"github.com/google/uuid"
)

var (
	// ErrEmptyQuery is returned by Search for a blank city name; no cycle is started
	ErrEmptyQuery = errors.New("empty search query")
	// ErrSuperseded is returned when a newer cycle started before this one finished
	ErrSuperseded = errors.New("refresh superseded by a newer one")
	// ErrInvalidCoordinates is returned by LocateAt for out-of-range positions
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	// ErrBusy is returned by Refresh while another cycle is in flight
	ErrBusy = errors.New("a refresh is already in flight")
	// ErrNothingToRefresh is returned by Refresh before any trigger has resolved a location
	ErrNothingToRefresh = errors.New("no refresh to repeat")
)

type triggerKind string

const (
	triggerLocate   triggerKind = "locate"
	triggerLocateAt triggerKind = "locate_at"
	triggerSearch   triggerKind = "search"
)

type trigger struct {
	kind   triggerKind
	city   string
	coords models.Coordinates
}

// cycle is the token of one refresh
type cycle struct {
	seq  uint64
	id   string
	trig *trigger
}

// Options configures a Dashboard
type Options struct {
	Geocoder   datasource.Geocoder
	Conditions datasource.ConditionsSource
	Forecasts  datasource.ForecastSource
	// Locator answers Locate. A nil Locator reports the position as unavailable.
	Locator  geolocation.Locator
	Notifier Notifier
	// LabelZone picks the time zone for hour and weekday labels given the
	// forecast city's UTC offset in seconds. Nil means server local time.
	LabelZone func(utcOffset int) *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

// Dashboard owns the current Snapshot and serialises commits to it
type Dashboard struct {
	geocoder   datasource.Geocoder
	conditions datasource.ConditionsSource
	forecasts  datasource.ForecastSource
	locator    geolocation.Locator
	notifier   Notifier
	labelZone  func(int) *time.Location
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	seq     uint64
	active  int
	settled bool
	last    *trigger
	current atomic.Pointer[Snapshot]
}

// New creates an idle dashboard
func New(opts Options) (*Dashboard, error) {
	if opts.Geocoder == nil || opts.Conditions == nil || opts.Forecasts == nil {
		return nil, fmt.Errorf("dashboard: geocoder, conditions and forecast sources are required")
	}
	d := &Dashboard{
		geocoder:   opts.Geocoder,
		conditions: opts.Conditions,
		forecasts:  opts.Forecasts,
		locator:    opts.Locator,
		notifier:   opts.Notifier,
		labelZone:  opts.LabelZone,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if d.notifier == nil {
		d.notifier = NotifierFunc(func(Notification) {})
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dashboard")
	d.current.Store(&Snapshot{Status: StatusIdle, UpdatedAt: d.now()})
	return d, nil
}

// Snapshot returns the latest committed state
func (d *Dashboard) Snapshot() Snapshot {
	return *d.current.Load()
}

// Locate refreshes the dashboard for the position reported by the Locator
func (d *Dashboard) Locate(ctx context.Context) (Snapshot, error) {
	c := d.begin(&trigger{kind: triggerLocate})
	defer d.end()

	coords, err := d.locate(ctx)
	if err != nil {
		return d.fail(c, err)
	}
	return d.run(ctx, c, func(ctx context.Context) (models.Location, error) {
		return d.geocoder.ReverseLookup(ctx, coords)
	})
}

// LocateAt refreshes the dashboard for coordinates reported by the client
func (d *Dashboard) LocateAt(ctx context.Context, coords models.Coordinates) (Snapshot, error) {
	if !coords.Valid() {
		return d.Snapshot(), ErrInvalidCoordinates
	}
	c := d.begin(&trigger{kind: triggerLocateAt, coords: coords})
	defer d.end()
	return d.run(ctx, c, func(ctx context.Context) (models.Location, error) {
		return d.geocoder.ReverseLookup(ctx, coords)
	})
}

// ReportLocationError records a geolocation failure observed by the client.
// It supersedes any cycle in flight and emits the location notification.
func (d *Dashboard) ReportLocationError(err *datasource.LocationPermissionError) Snapshot {
	c := d.begin(nil)
	defer d.end()
	snap, _ := d.fail(c, err)
	return snap
}

// Search refreshes the dashboard for a city name. A blank name is ignored.
func (d *Dashboard) Search(ctx context.Context, city string) (Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return d.Snapshot(), ErrEmptyQuery
	}
	c := d.begin(&trigger{kind: triggerSearch, city: city})
	defer d.end()
	return d.run(ctx, c, func(ctx context.Context) (models.Location, error) {
		return d.geocoder.FindByName(ctx, city)
	})
}

// Refresh re-runs the most recent trigger whose location resolved. Failed
// searches and locates are never repeated. While another cycle is in flight
// Refresh starts nothing and returns ErrBusy, so it cannot supersede a
// user's request.
func (d *Dashboard) Refresh(ctx context.Context) (Snapshot, error) {
	d.mu.Lock()
	last, busy := d.last, d.active > 0
	d.mu.Unlock()

	switch {
	case busy:
		return d.Snapshot(), ErrBusy
	case last == nil:
		return d.Snapshot(), ErrNothingToRefresh
	}
	switch last.kind {
	case triggerSearch:
		return d.Search(ctx, last.city)
	case triggerLocateAt:
		return d.LocateAt(ctx, last.coords)
	default:
		return d.Locate(ctx)
	}
}

func (d *Dashboard) locate(ctx context.Context) (models.Coordinates, error) {
	if d.locator == nil {
		return models.Coordinates{}, &datasource.LocationPermissionError{
			Code:    datasource.PositionUnavailable,
			Message: "no geolocation provider configured",
		}
	}
	coords, err := d.locator.Locate(ctx)
	if err != nil {
		var locErr *datasource.LocationPermissionError
		if !errors.As(err, &locErr) {
			err = datasource.NewLocationPermissionError(int(datasource.PositionUnavailable), err.Error())
		}
		return models.Coordinates{}, err
	}
	return coords, nil
}

// run executes the stages that follow a successful trigger
func (d *Dashboard) run(ctx context.Context, c cycle, resolve func(context.Context) (models.Location, error)) (Snapshot, error) {
	loc, err := resolve(ctx)
	if err != nil {
		return d.fail(c, err)
	}

	var current *models.CurrentConditions
	cur, err := d.conditions.CurrentConditions(ctx, loc.Coordinates())
	if err != nil {
		d.logger.Error("current conditions fetch failed", "cycle", c.id, "location", loc.Name, "error", err)
	} else {
		current = &cur
	}

	snap, ok := d.commit(c, func(s *Snapshot) {
		s.Location = &loc
		s.Current = current
		s.Hourly = nil
		s.Daily = nil
		s.UTCOffset = 0
		s.Loading = false
		d.settled = true
		if c.trig != nil {
			d.last = c.trig
		}
	})
	if !ok {
		return snap, ErrSuperseded
	}

	series, err := d.forecasts.ForecastSeries(ctx, loc.Coordinates())
	if err != nil {
		d.logger.Error("forecast fetch failed", "cycle", c.id, "location", loc.Name, "error", err)
		snap, ok = d.commit(c, func(s *Snapshot) {
			if s.Current != nil {
				s.Status = StatusReady
			} else {
				s.Status = StatusError
			}
		})
	} else {
		d.logger.Debug("forecast received",
			"cycle", c.id,
			"city", series.Location,
			"records", len(series.Records),
			"fetched", series.Fetched,
		)
		zone := d.zone(series.UTCOffset)
		hourly := sampling.NextHours(series.Records, d.now(), zone)
		daily := sampling.NextDays(series.Records, zone)
		snap, ok = d.commit(c, func(s *Snapshot) {
			s.Hourly = hourly
			s.Daily = daily
			s.UTCOffset = series.UTCOffset
			s.Status = StatusReady
		})
	}
	if !ok {
		return snap, ErrSuperseded
	}

	d.logger.Info("dashboard refreshed",
		"cycle", c.id,
		"location", loc.Name,
		"status", snap.Status,
		"hourly", len(snap.Hourly),
		"daily", len(snap.Daily),
	)
	return snap, nil
}

// begin starts a new cycle and makes every older cycle stale
func (d *Dashboard) begin(t *trigger) cycle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.active++
	c := cycle{seq: d.seq, id: uuid.New().String(), trig: t}

	next := *d.current.Load()
	next.CycleID = c.id
	next.Status = StatusLoading
	next.Loading = !d.settled
	next.UpdatedAt = d.now()
	d.current.Store(&next)

	if t != nil {
		d.logger.Debug("refresh started", "cycle", c.id, "trigger", t.kind)
	}
	return c
}

// end marks a cycle started by begin as finished, whatever its outcome
func (d *Dashboard) end() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
}

// commit applies mutate to a copy of the current snapshot and publishes it,
// unless c is no longer the latest cycle
func (d *Dashboard) commit(c cycle, mutate func(s *Snapshot)) (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.seq != d.seq {
		d.logger.Debug("discarding stale commit", "cycle", c.id)
		return *d.current.Load(), false
	}
	next := *d.current.Load()
	mutate(&next)
	next.UpdatedAt = d.now()
	d.current.Store(&next)
	return next, true
}

// fail ends a cycle whose location could not be resolved. Location and
// weather stay as they were.
func (d *Dashboard) fail(c cycle, err error) (Snapshot, error) {
	var (
		denied   *datasource.LocationPermissionError
		notFound *datasource.NotFoundError
		kind     NotificationKind
		message  string
	)
	switch {
	case errors.As(err, &denied):
		kind, message = locationNotFound()
		d.logger.Warn("geolocation failed", "cycle", c.id, "code", int(denied.Code), "error", err)
	case errors.As(err, &notFound):
		kind, message = cityNotFound(notFound.Query)
		d.logger.Info("city not found", "cycle", c.id, "query", notFound.Query)
	default:
		d.logger.Error("location lookup failed", "cycle", c.id, "error", err)
	}

	snap, ok := d.commit(c, func(s *Snapshot) {
		s.Loading = false
		d.settled = true
		if s.Location != nil {
			s.Status = StatusReady
		} else {
			s.Status = StatusError
		}
	})
	if !ok {
		return snap, ErrSuperseded
	}

	if kind != "" {
		d.notifier.Notify(Notification{Kind: kind, Message: message, CycleID: c.id, At: d.now()})
	}
	return snap, err
}

func (d *Dashboard) zone(utcOffset int) *time.Location {
	if d.labelZone == nil {
		return nil
	}
	return d.labelZone(utcOffset)
}
