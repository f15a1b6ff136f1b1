package dashboard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

// fakeUpstream serves canned answers and counts calls
type fakeUpstream struct {
	mu          sync.Mutex
	cities      map[string]models.Location
	reverseName string
	findHook    func(name string)
	currentErr  error
	forecastErr error
	records     []models.ForecastRecord
	utcOffset   int

	findCalls     int
	reverseCalls  int
	currentCalls  int
	forecastCalls int
	lastReverse   models.Coordinates
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		cities: map[string]models.Location{
			"London": {Name: "London", Country: "GB", Latitude: 51.5, Longitude: -0.12},
			"Paris":  {Name: "Paris", Country: "FR", Latitude: 48.85, Longitude: 2.35},
		},
		reverseName: "Berlin",
		records:     forecastRecords(testNow, 40),
	}
}

func forecastRecords(start time.Time, n int) []models.ForecastRecord {
	records := make([]models.ForecastRecord, n)
	for i := range records {
		records[i] = models.ForecastRecord{
			Timestamp:   start.Add(time.Duration(i) * 3 * time.Hour).Unix(),
			Temperature: float64(10 + i),
			Description: "clear sky",
			Icon:        "01d",
		}
	}
	return records
}

func (f *fakeUpstream) Name() string { return "fake" }

func (f *fakeUpstream) FindByName(_ context.Context, name string) (models.Location, error) {
	f.mu.Lock()
	f.findCalls++
	hook := f.findHook
	f.mu.Unlock()

	if hook != nil {
		hook(name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.cities[name]
	if !ok {
		return models.Location{}, &datasource.NotFoundError{Query: name}
	}
	return loc, nil
}

func (f *fakeUpstream) ReverseLookup(_ context.Context, coords models.Coordinates) (models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseCalls++
	f.lastReverse = coords
	return models.Location{Name: f.reverseName, Latitude: coords.Latitude, Longitude: coords.Longitude}, nil
}

func (f *fakeUpstream) CurrentConditions(_ context.Context, coords models.Coordinates) (models.CurrentConditions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++
	if f.currentErr != nil {
		return models.CurrentConditions{}, f.currentErr
	}
	// the temperature echoes the latitude so tests can tell locations apart
	return models.CurrentConditions{Temperature: coords.Latitude, Description: "clear sky", HumidityPercent: 40}, nil
}

func (f *fakeUpstream) ForecastSeries(_ context.Context, _ models.Coordinates) (models.ForecastSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls++
	if f.forecastErr != nil {
		return models.ForecastSeries{}, f.forecastErr
	}
	records := make([]models.ForecastRecord, len(f.records))
	copy(records, f.records)
	return models.ForecastSeries{Location: "Testville,ZZ", UTCOffset: f.utcOffset, Records: records, Fetched: testNow}, nil
}

func (f *fakeUpstream) set(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeLocator struct {
	coords models.Coordinates
	err    error
}

func (l *fakeLocator) Locate(context.Context) (models.Coordinates, error) {
	return l.coords, l.err
}

type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.got))
	copy(out, r.got)
	return out
}

func newTestDashboard(t *testing.T, up *fakeUpstream, locator *fakeLocator) (*Dashboard, *recorder) {
	t.Helper()

	rec := &recorder{}
	opts := Options{
		Geocoder:   up,
		Conditions: up,
		Forecasts:  up,
		Notifier:   rec,
		LabelZone:  func(int) *time.Location { return time.UTC },
		Now:        func() time.Time { return testNow },
	}
	if locator != nil {
		opts.Locator = locator
	}
	d, err := New(opts)
	require.NoError(t, err)
	return d, rec
}

var errUpstream = &datasource.UpstreamError{Op: "test", StatusCode: 500, Err: errors.New("boom")}

func TestNewRequiresSources(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestInitialSnapshotIsIdle(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeUpstream(), nil)

	snap := d.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Location)
}

func TestSearchPopulatesDashboard(t *testing.T) {
	up := newFakeUpstream()
	d, rec := newTestDashboard(t, up, nil)

	snap, err := d.Search(context.Background(), " London ")

	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	assert.False(t, snap.Loading)
	assert.NotEmpty(t, snap.CycleID)
	require.NotNil(t, snap.Location)
	assert.Equal(t, "London", snap.Location.Name)
	require.NotNil(t, snap.Current)
	assert.Equal(t, 51.5, snap.Current.Temperature)
	assert.Len(t, snap.Hourly, 5)
	assert.Len(t, snap.Daily, 5)
	assert.Equal(t, "12:00 am", snap.Hourly[0].Label)
	assert.Equal(t, "Monday", snap.Daily[0].Label)
	assert.Equal(t, snap, d.Snapshot())
	assert.Empty(t, rec.all())
}

func TestSearchNotFoundLeavesStateUntouched(t *testing.T) {
	up := newFakeUpstream()
	d, rec := newTestDashboard(t, up, nil)

	before, err := d.Search(context.Background(), "London")
	require.NoError(t, err)

	snap, err := d.Search(context.Background(), "Atlantis")

	var notFound *datasource.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, before.Location, snap.Location)
	assert.Equal(t, before.Current, snap.Current)
	assert.Equal(t, before.Hourly, snap.Hourly)
	assert.Equal(t, before.Daily, snap.Daily)
	assert.Equal(t, StatusReady, snap.Status)

	// no weather fetch was made for the unknown city
	assert.Equal(t, 1, up.currentCalls)
	assert.Equal(t, 1, up.forecastCalls)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, CityNotFound, got[0].Kind)
	assert.Equal(t, "City not found: Atlantis. Please enter a valid city name.", got[0].Message)
	assert.Equal(t, snap.CycleID, got[0].CycleID)
}

func TestSearchNotFoundFromIdle(t *testing.T) {
	d, rec := newTestDashboard(t, newFakeUpstream(), nil)

	snap, err := d.Search(context.Background(), "Atlantis")

	require.Error(t, err)
	assert.Equal(t, StatusError, snap.Status)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Location)
	assert.Nil(t, snap.Current)
	assert.Len(t, rec.all(), 1)
}

func TestEmptySearchIsIgnored(t *testing.T) {
	up := newFakeUpstream()
	d, rec := newTestDashboard(t, up, nil)

	snap, err := d.Search(context.Background(), "   ")

	require.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.CycleID)
	assert.Zero(t, up.findCalls)
	assert.Empty(t, rec.all())
}

func TestForecastFailureStillReachesReady(t *testing.T) {
	up := newFakeUpstream()
	up.forecastErr = errUpstream
	d, rec := newTestDashboard(t, up, nil)

	snap, err := d.Search(context.Background(), "Paris")

	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Current)
	assert.Equal(t, 48.85, snap.Current.Temperature)
	assert.Nil(t, snap.Hourly)
	assert.Nil(t, snap.Daily)
	assert.False(t, snap.HasForecast())
	assert.Empty(t, rec.all(), "upstream failures are logged, not notified")
}

func TestForecastFailureClearsPreviousCitysForecast(t *testing.T) {
	up := newFakeUpstream()
	d, _ := newTestDashboard(t, up, nil)

	_, err := d.Search(context.Background(), "London")
	require.NoError(t, err)

	up.set(func(f *fakeUpstream) { f.forecastErr = errUpstream })
	snap, err := d.Search(context.Background(), "Paris")

	require.NoError(t, err)
	assert.Equal(t, "Paris", snap.Location.Name)
	assert.False(t, snap.HasForecast())
}

func TestCurrentConditionsFailureIsIsolated(t *testing.T) {
	up := newFakeUpstream()
	up.currentErr = errUpstream
	d, _ := newTestDashboard(t, up, nil)

	snap, err := d.Search(context.Background(), "Paris")

	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "Paris", snap.Location.Name)
	assert.Nil(t, snap.Current)
	assert.Len(t, snap.Hourly, 5)
}

func TestAllFetchesFailing(t *testing.T) {
	up := newFakeUpstream()
	up.currentErr = errUpstream
	up.forecastErr = errUpstream
	d, rec := newTestDashboard(t, up, nil)

	snap, err := d.Search(context.Background(), "Paris")

	require.NoError(t, err)
	assert.Equal(t, StatusError, snap.Status)
	assert.False(t, snap.Loading)
	assert.Empty(t, rec.all())
}

func TestStaleCycleIsDiscarded(t *testing.T) {
	up := newFakeUpstream()
	started := make(chan struct{})
	release := make(chan struct{})
	up.findHook = func(name string) {
		if name == "London" {
			close(started)
			<-release
		}
	}
	d, _ := newTestDashboard(t, up, nil)

	type result struct {
		snap Snapshot
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		snap, err := d.Search(context.Background(), "London")
		slow <- result{snap, err}
	}()

	<-started
	fast, err := d.Search(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", fast.Location.Name)

	close(release)
	res := <-slow

	require.ErrorIs(t, res.err, ErrSuperseded)
	final := d.Snapshot()
	assert.Equal(t, "Paris", final.Location.Name)
	assert.Equal(t, 48.85, final.Current.Temperature)
	assert.Equal(t, fast.CycleID, final.CycleID)
	assert.Equal(t, StatusReady, final.Status)
}

func TestLoadingGatesOnlyTheFirstCycle(t *testing.T) {
	up := newFakeUpstream()
	d, _ := newTestDashboard(t, up, nil)

	var during []Snapshot
	up.findHook = func(string) { during = append(during, d.Snapshot()) }

	_, err := d.Search(context.Background(), "London")
	require.NoError(t, err)
	_, err = d.Search(context.Background(), "Paris")
	require.NoError(t, err)

	require.Len(t, during, 2)
	assert.Equal(t, StatusLoading, during[0].Status)
	assert.True(t, during[0].Loading)
	assert.Equal(t, StatusLoading, during[1].Status)
	assert.False(t, during[1].Loading)
	assert.Equal(t, "London", during[1].Location.Name, "previous data stays visible while loading")
}

func TestLocateUsesLocatorAndReverseLookup(t *testing.T) {
	up := newFakeUpstream()
	loc := &fakeLocator{coords: models.Coordinates{Latitude: 52.52, Longitude: 13.40}}
	d, rec := newTestDashboard(t, up, loc)

	snap, err := d.Locate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, loc.coords, up.lastReverse)
	assert.Equal(t, "Berlin", snap.Location.Name)
	assert.Equal(t, 52.52, snap.Current.Temperature)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Empty(t, rec.all())
}

func TestLocateFailureNotifies(t *testing.T) {
	tests := []struct {
		name    string
		locator *fakeLocator
	}{
		{name: "permission denied", locator: &fakeLocator{err: &datasource.LocationPermissionError{Code: datasource.PermissionDenied}}},
		{name: "plain error", locator: &fakeLocator{err: errors.New("gps offline")}},
		{name: "no locator", locator: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newFakeUpstream()
			d, rec := newTestDashboard(t, up, tt.locator)

			snap, err := d.Locate(context.Background())

			var locErr *datasource.LocationPermissionError
			require.ErrorAs(t, err, &locErr)
			assert.False(t, snap.Loading)
			assert.Equal(t, StatusError, snap.Status)
			assert.Zero(t, up.reverseCalls)

			got := rec.all()
			require.Len(t, got, 1)
			assert.Equal(t, LocationNotFound, got[0].Kind)
			assert.Equal(t, "Location not found. Please try again.", got[0].Message)
		})
	}
}

func TestLocateAt(t *testing.T) {
	up := newFakeUpstream()
	d, _ := newTestDashboard(t, up, nil)

	snap, err := d.LocateAt(context.Background(), models.Coordinates{Latitude: 40.7, Longitude: -74})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", snap.Location.Name)
	assert.Equal(t, 40.7, snap.Location.Latitude)

	_, err = d.LocateAt(context.Background(), models.Coordinates{Latitude: 91})
	require.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.Equal(t, 1, up.reverseCalls)
}

func TestReportLocationError(t *testing.T) {
	up := newFakeUpstream()
	d, rec := newTestDashboard(t, up, nil)

	_, err := d.Search(context.Background(), "London")
	require.NoError(t, err)

	snap := d.ReportLocationError(datasource.NewLocationPermissionError(3, "timed out"))

	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "London", snap.Location.Name)
	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, LocationNotFound, got[0].Kind)
}

func TestRefreshRepeatsLastTrigger(t *testing.T) {
	up := newFakeUpstream()
	loc := &fakeLocator{coords: models.Coordinates{Latitude: 1, Longitude: 2}}
	d, _ := newTestDashboard(t, up, loc)

	_, err := d.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNothingToRefresh)
	assert.Zero(t, up.reverseCalls)

	_, err = d.Locate(context.Background())
	require.NoError(t, err)
	_, err = d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, up.reverseCalls)

	_, err = d.Search(context.Background(), "Paris")
	require.NoError(t, err)
	snap, err := d.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, up.findCalls)
	assert.Equal(t, 2, up.reverseCalls)
	assert.Equal(t, "Paris", snap.Location.Name)
}

func TestRefreshSkipsFailedSearch(t *testing.T) {
	up := newFakeUpstream()
	d, rec := newTestDashboard(t, up, nil)

	_, err := d.Search(context.Background(), "London")
	require.NoError(t, err)
	_, err = d.Search(context.Background(), "Atlantis")
	require.Error(t, err)
	require.Len(t, rec.all(), 1)

	for i := 0; i < 3; i++ {
		snap, err := d.Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "London", snap.Location.Name)
	}

	assert.Equal(t, 5, up.findCalls)
	assert.Equal(t, 4, up.currentCalls)
	assert.Len(t, rec.all(), 1, "refreshing repeats no notification")
}

func TestRefreshSkipsFailedLocate(t *testing.T) {
	up := newFakeUpstream()
	loc := &fakeLocator{err: datasource.NewLocationPermissionError(1, "denied")}
	d, rec := newTestDashboard(t, up, loc)

	_, err := d.Search(context.Background(), "Paris")
	require.NoError(t, err)
	_, err = d.Locate(context.Background())
	require.Error(t, err)

	snap, err := d.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Paris", snap.Location.Name)
	assert.Equal(t, 2, up.findCalls)
	assert.Len(t, rec.all(), 1)
}

func TestRefreshWaitsForCycleInFlight(t *testing.T) {
	up := newFakeUpstream()
	started := make(chan struct{})
	release := make(chan struct{})
	up.findHook = func(name string) {
		if name == "Paris" {
			close(started)
			<-release
		}
	}
	d, _ := newTestDashboard(t, up, nil)

	_, err := d.Search(context.Background(), "London")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := d.Search(context.Background(), "Paris")
		done <- err
	}()
	<-started

	_, err = d.Refresh(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done, "the user's search is not superseded")
	assert.Equal(t, "Paris", d.Snapshot().Location.Name)

	_, err = d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, up.findCalls)
}

func TestRefreshLogsForecastSource(t *testing.T) {
	var buf bytes.Buffer
	up := newFakeUpstream()
	d, err := New(Options{
		Geocoder:   up,
		Conditions: up,
		Forecasts:  up,
		Now:        func() time.Time { return testNow },
		Logger:     slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)

	_, err = d.Search(context.Background(), "London")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"msg":"forecast received"`)
	assert.Contains(t, buf.String(), `"city":"Testville,ZZ"`)
	assert.Contains(t, buf.String(), `"fetched":"2026-10-19T00:00:00Z"`)
}

func TestLabelZoneUsesForecastOffset(t *testing.T) {
	up := newFakeUpstream()
	up.utcOffset = 2 * 3600
	var gotOffset int
	d, err := New(Options{
		Geocoder:   up,
		Conditions: up,
		Forecasts:  up,
		LabelZone: func(offset int) *time.Location {
			gotOffset = offset
			return time.FixedZone("", offset)
		},
		Now: func() time.Time { return testNow },
	})
	require.NoError(t, err)

	snap, err := d.Search(context.Background(), "Paris")

	require.NoError(t, err)
	assert.Equal(t, 2*3600, gotOffset)
	assert.Equal(t, 2*3600, snap.UTCOffset)
	assert.Equal(t, "02:00 am", snap.Hourly[0].Label)
}
