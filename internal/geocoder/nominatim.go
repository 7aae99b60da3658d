package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shenikar/incident_intelligence_system/internal/config"
	"github.com/sirupsen/logrus"
)

// Литералы-заглушки при недоступном геокодере
const (
	fallbackAddress      = "Unknown location"
	fallbackLocationName = "Unknown Location"
)

// nominatimResponse - нужная часть ответа Nominatim
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		Suburb      string `json:"suburb"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
	} `json:"address"`
}

// Client - обратное геокодирование через Nominatim (OpenStreetMap).
// Все вызовы best-effort с коротким таймаутом: таймаут, не-2xx или
// транспортная ошибка дают литерал-заглушку и никогда не валят вызывающего.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *logrus.Logger
}

// New создает клиент геокодера с таймаутом из конфигурации
func New(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GeocoderTimeout},
		baseURL:    cfg.GeocoderBaseURL,
		userAgent:  cfg.GeocoderUserAgent,
		logger:     logger,
	}
}

// ReverseGeocode возвращает развёрнутый человекочитаемый адрес точки
func (c *Client) ReverseGeocode(ctx context.Context, latitude, longitude float64) string {
	data, err := c.lookup(ctx, latitude, longitude)
	if err != nil {
		c.logger.WithError(err).Warn("Reverse geocoding failed, using fallback address")
		return fallbackAddress
	}

	var parts []string
	addr := data.Address
	switch {
	case addr.HouseNumber != "" && addr.Road != "":
		parts = append(parts, fmt.Sprintf("%s %s", addr.HouseNumber, addr.Road))
	case addr.Road != "":
		parts = append(parts, addr.Road)
	}
	switch {
	case addr.Suburb != "":
		parts = append(parts, addr.Suburb)
	case addr.City != "":
		parts = append(parts, addr.City)
	case addr.Town != "":
		parts = append(parts, addr.Town)
	}
	if addr.State != "" {
		parts = append(parts, addr.State)
	}

	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if data.DisplayName != "" {
		return data.DisplayName
	}
	return fallbackAddress
}

// LocationName возвращает короткое "Город, Регион" для горячих точек
func (c *Client) LocationName(ctx context.Context, latitude, longitude float64) string {
	data, err := c.lookup(ctx, latitude, longitude)
	if err != nil {
		c.logger.WithError(err).Warn("Reverse geocoding failed, using fallback location name")
		return fallbackLocationName
	}

	addr := data.Address
	city := addr.City
	if city == "" {
		city = addr.Town
	}
	if city == "" {
		city = addr.Village
	}
	if city == "" {
		city = "Unknown City"
	}
	state := addr.State
	if state == "" {
		state = "Unknown State"
	}
	return fmt.Sprintf("%s, %s", city, state)
}

func (c *Client) lookup(ctx context.Context, latitude, longitude float64) (*nominatimResponse, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%f", latitude))
	query.Set("lon", fmt.Sprintf("%f", longitude))
	query.Set("format", "json")
	query.Set("addressdetails", "1")
	query.Set("zoom", "18")

	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var data nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	return &data, nil
}
