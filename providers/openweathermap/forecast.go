package openweathermap

import (
	"context"
	"time"

	"weather-dashboard/models"
)

// forecastResponse represents the /forecast API response structure.
// The free tier returns 5 days of entries at 3-hour intervals.
type forecastResponse struct {
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"` // shift in seconds from UTC
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []condition `json:"weather"`
	} `json:"list"`
}

// ForecastSeries fetches the raw forecast series at the given coordinates.
// Records keep the upstream order; the 3-hour spacing is not re-validated.
func (c *Client) ForecastSeries(ctx context.Context, coords models.Coordinates) (models.ForecastSeries, error) {
	params := coordParams(coords)
	params["units"] = c.units

	var resp forecastResponse
	if err := c.get(ctx, "forecast", forecastEndpoint, params, &resp); err != nil {
		return models.ForecastSeries{}, err
	}

	series := models.ForecastSeries{
		Location:  resp.City.Name,
		UTCOffset: resp.City.Timezone,
		Records:   make([]models.ForecastRecord, 0, len(resp.List)),
		Fetched:   time.Now(),
	}
	if resp.City.Country != "" {
		series.Location = resp.City.Name + "," + resp.City.Country
	}

	for _, item := range resp.List {
		cond := firstCondition(item.Weather)
		series.Records = append(series.Records, models.ForecastRecord{
			Timestamp:   item.Dt,
			Temperature: item.Main.Temp,
			Description: cond.Description,
			Icon:        cond.Icon,
		})
	}

	return series, nil
}
