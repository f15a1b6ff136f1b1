package openweathermap

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

type findResponse struct {
	Count int `json:"count"`
	List  []struct {
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Sys struct {
			Country string `json:"country"`
		} `json:"sys"`
	} `json:"list"`
}

type reverseResponse []struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// FindByName searches for a city and returns the first match
func (c *Client) FindByName(ctx context.Context, name string) (models.Location, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return models.Location{}, &datasource.NotFoundError{Query: name}
	}

	var resp findResponse
	err := c.get(ctx, "find", findEndpoint, map[string]string{"q": query, "units": c.units}, &resp)
	if err != nil {
		// The search endpoint answers 404 for some unknown names instead of an empty list
		var upErr *datasource.UpstreamError
		if errors.As(err, &upErr) && upErr.StatusCode == http.StatusNotFound {
			return models.Location{}, &datasource.NotFoundError{Query: query}
		}
		return models.Location{}, err
	}

	if len(resp.List) == 0 {
		return models.Location{}, &datasource.NotFoundError{Query: query}
	}

	match := resp.List[0]
	return models.Location{
		Name:      match.Name,
		Country:   match.Sys.Country,
		Latitude:  match.Coord.Lat,
		Longitude: match.Coord.Lon,
	}, nil
}

// ReverseLookup names the place at the given coordinates
func (c *Client) ReverseLookup(ctx context.Context, coords models.Coordinates) (models.Location, error) {
	params := coordParams(coords)
	params["limit"] = "1"

	var resp reverseResponse
	if err := c.get(ctx, "reverse", reverseEndpoint, params, &resp); err != nil {
		return models.Location{}, err
	}

	loc := models.Location{
		Name:      models.UnknownLocationName,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}
	if len(resp) > 0 && resp[0].Name != "" {
		loc.Name = resp[0].Name
		loc.Country = resp[0].Country
	}
	return loc, nil
}
