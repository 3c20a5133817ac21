package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nugget/jarvis/internal/httpkit"
)

// WeatherUnavailable is the reply when the weather service fails.
const WeatherUnavailable = "Sorry, I couldn't get the weather right now. Please try again later."

// WeatherClient fetches current conditions from a wttr.in compatible
// service.
type WeatherClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWeatherClient creates a weather client. httpClient may be nil.
func NewWeatherClient(baseURL string, httpClient *http.Client) *WeatherClient {
	if baseURL == "" {
		baseURL = "https://wttr.in"
	}
	if httpClient == nil {
		httpClient = httpkit.NewClient()
	}
	return &WeatherClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Report is the normalized current conditions for one location.
type Report struct {
	Location    string `json:"location"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description"`
	TempC       string `json:"temp_c"`
	TempF       string `json:"temp_f"`
	FeelsLikeC  string `json:"feels_like_c"`
	FeelsLikeF  string `json:"feels_like_f"`
	Humidity    string `json:"humidity"`
	WindKmph    string `json:"wind_kmph"`
	WindDir     string `json:"wind_dir"`
	ObservedAt  string `json:"observed_at,omitempty"`
}

// wttrResponse is the subset of the ?format=j1 document we read.
type wttrResponse struct {
	CurrentCondition []struct {
		TempC          string       `json:"temp_C"`
		TempF          string       `json:"temp_F"`
		FeelsLikeC     string       `json:"FeelsLikeC"`
		FeelsLikeF     string       `json:"FeelsLikeF"`
		Humidity       string       `json:"humidity"`
		WindspeedKmph  string       `json:"windspeedKmph"`
		Winddir16Point string       `json:"winddir16Point"`
		WeatherDesc    []wttrString `json:"weatherDesc"`
		ObsTime        string       `json:"localObsDateTime"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrString `json:"areaName"`
		Region   []wttrString `json:"region"`
		Country  []wttrString `json:"country"`
	} `json:"nearest_area"`
}

type wttrString struct {
	Value string `json:"value"`
}

func first(vs []wttrString) string {
	if len(vs) == 0 {
		return ""
	}
	return strings.TrimSpace(vs[0].Value)
}

// Current fetches the current conditions for city.
func (c *WeatherClient) Current(ctx context.Context, city string) (*Report, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("location required")
	}

	endpoint := c.baseURL + "/" + url.PathEscape(city) + "?format=j1"
	body, err := httpkit.Get(ctx, c.httpClient, endpoint, "application/json", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}

	var w wttrResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}
	if len(w.CurrentCondition) == 0 {
		return nil, fmt.Errorf("no current conditions for %q", city)
	}

	cc := w.CurrentCondition[0]
	r := &Report{
		Location:    city,
		Description: first(cc.WeatherDesc),
		TempC:       cc.TempC,
		TempF:       cc.TempF,
		FeelsLikeC:  cc.FeelsLikeC,
		FeelsLikeF:  cc.FeelsLikeF,
		Humidity:    cc.Humidity,
		WindKmph:    cc.WindspeedKmph,
		WindDir:     cc.Winddir16Point,
		ObservedAt:  cc.ObsTime,
	}
	if len(w.NearestArea) > 0 {
		area := w.NearestArea[0]
		if name := first(area.AreaName); name != "" {
			r.Location = name
		}
		r.Region = first(area.Region)
		r.Country = first(area.Country)
	}
	return r, nil
}

// Summary renders r as a spoken sentence. It always starts with
// "Current weather:".
func (r *Report) Summary() string {
	var sb strings.Builder
	sb.WriteString("Current weather: ")

	place := r.Location
	if r.Country != "" && !strings.EqualFold(r.Country, r.Location) {
		place += ", " + r.Country
	}
	desc := r.Description
	if desc == "" {
		desc = "Conditions unknown"
	}
	fmt.Fprintf(&sb, "%s in %s, %s°C (%s°F)", desc, place, r.TempC, r.TempF)
	if r.FeelsLikeC != "" && r.FeelsLikeC != r.TempC {
		fmt.Fprintf(&sb, ", feels like %s°C", r.FeelsLikeC)
	}
	if r.Humidity != "" {
		fmt.Fprintf(&sb, ", humidity %s%%", r.Humidity)
	}
	if r.WindKmph != "" {
		fmt.Fprintf(&sb, ", wind %s km/h", r.WindKmph)
		if r.WindDir != "" {
			sb.WriteString(" " + r.WindDir)
		}
	}
	sb.WriteString(".")
	return sb.String()
}

// WeatherTool returns the weather tool backed by c.
func WeatherTool(c *WeatherClient) *Tool {
	return &Tool{
		Name:        "weather",
		Description: "Current weather conditions for a city.",
		Apology:     WeatherUnavailable,
		Handler: func(ctx context.Context, city string) (string, error) {
			r, err := c.Current(ctx, city)
			if err != nil {
				return "", err
			}
			return r.Summary(), nil
		},
	}
}
