package openweathermap

import (
	"context"
	"time"

	"weather-dashboard/models"
)

// currentWeatherResponse represents the /weather API response structure
type currentWeatherResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []condition `json:"weather"`
	Dt      int64       `json:"dt"`
}

// CurrentConditions fetches the latest observation at the given coordinates
func (c *Client) CurrentConditions(ctx context.Context, coords models.Coordinates) (models.CurrentConditions, error) {
	params := coordParams(coords)
	params["units"] = c.units

	var resp currentWeatherResponse
	if err := c.get(ctx, "current", weatherEndpoint, params, &resp); err != nil {
		return models.CurrentConditions{}, err
	}

	cond := firstCondition(resp.Weather)
	observed := time.Now()
	if resp.Dt > 0 {
		observed = time.Unix(resp.Dt, 0)
	}

	return models.CurrentConditions{
		Temperature:     resp.Main.Temp,
		Description:     cond.Description,
		Icon:            cond.Icon,
		IconURL:         models.IconURL(cond.Icon),
		HumidityPercent: resp.Main.Humidity,
		WindSpeed:       resp.Wind.Speed,
		FeelsLike:       resp.Main.FeelsLike,
		ObservedAt:      observed,
	}, nil
}
