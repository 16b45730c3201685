// Package geo provides the position sources used by the capture session:
// gpsd for device GPS, ipapi.co for the coarse IP fallback and a static
// position for fixed kiosks.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/constants"
)

// IPAPI resolves the approximate location of the public IP address.
type IPAPI struct {
	url    string
	client *http.Client
}

// NewIPAPI creates an IP locator. An empty url uses the public ipapi.co endpoint.
func NewIPAPI(url string, timeout time.Duration) *IPAPI {
	if url == "" {
		url = constants.DefaultIPLookupURL
	}
	return &IPAPI{url: url, client: &http.Client{Timeout: timeout}}
}

type ipapiResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      string   `json:"city"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

// Locate implements capture.IPLocator.
func (a *IPAPI) Locate(ctx context.Context) (capture.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return capture.Coordinates{}, fmt.Errorf("ip lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result ipapiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not unmarshal response: %w", err)
	}
	if result.Error {
		return capture.Coordinates{}, fmt.Errorf("ip lookup rejected: %s", result.Reason)
	}
	if result.Latitude == nil || result.Longitude == nil {
		return capture.Coordinates{}, errors.New("ip lookup returned no coordinates")
	}

	return capture.Coordinates{Latitude: *result.Latitude, Longitude: *result.Longitude}, nil
}
