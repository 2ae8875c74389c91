package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultOpenWeatherURL = "https://api.openweathermap.org"

type WeatherReport struct {
	City        string
	TempC       float64
	Description string
	Humidity    int
}

// OpenWeather fetches current conditions in metric units.
type OpenWeather struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenWeather(apiKey, baseURL string, timeout time.Duration) *OpenWeather {
	if trimBase(baseURL) == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeather{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: trimBase(baseURL),
		client:  newHTTPClient(timeout),
	}
}

func (o *OpenWeather) Current(ctx context.Context, city string) (WeatherReport, error) {
	if o.apiKey == "" {
		return WeatherReport{}, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	var body struct {
		Name string `json:"name"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := getJSON(ctx, o.client, "openweather", o.baseURL+"/data/2.5/weather?"+q.Encode(), &body); err != nil {
		return WeatherReport{}, err
	}
	report := WeatherReport{
		City:     city,
		TempC:    body.Main.Temp,
		Humidity: body.Main.Humidity,
	}
	if len(body.Weather) > 0 {
		report.Description = body.Weather[0].Description
	}
	return report, nil
}
