package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// NetworkSource resolves the device position through the Google Maps
// Geolocation API, using nearby WiFi access points and cell towers as hints.
// It polls the API on a fixed interval while subscribed.
type NetworkSource struct {
	client       *maps.Client
	pollInterval time.Duration
	modemIndex   int
	cache        *LastKnownCache
	logger       zerolog.Logger
}

// NewNetworkSource creates a network-assisted source backed by the Google
// Maps Geolocation API.
func NewNetworkSource(apiKey string, pollInterval time.Duration, modemIndex int,
	cache *LastKnownCache, logger zerolog.Logger) (*NetworkSource, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &NetworkSource{
		client:       c,
		pollInterval: pollInterval,
		modemIndex:   modemIndex,
		cache:        cache,
		logger:       logger,
	}, nil
}

// Kind identifies this source as network-assisted.
func (n *NetworkSource) Kind() SourceKind {
	return SourceNetwork
}

// Available reports whether the API client was configured.
func (n *NetworkSource) Available() bool {
	return n != nil && n.client != nil
}

// Subscribe polls the geolocation API until ctx is cancelled. The first poll
// runs immediately so a short acquisition deadline still gets one attempt.
func (n *NetworkSource) Subscribe(ctx context.Context) (<-chan Fix, error) {
	out := make(chan Fix)

	go func() {
		defer close(out)

		ticker := time.NewTicker(n.pollInterval)
		defer ticker.Stop()

		for {
			fix, err := n.geolocate(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				n.logger.Warn().Err(err).Msg("Network geolocation failed")
			} else {
				n.cache.Record(fix)
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// LastKnown returns the most recent fix this source kind has produced.
func (n *NetworkSource) LastKnown() (Fix, bool) {
	return n.cache.Lookup(SourceNetwork)
}

// geolocate performs one Geolocation API round-trip. Missing WiFi or cell
// scan data is tolerated; the API can still resolve from the request IP.
func (n *NetworkSource) geolocate(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &maps.GeolocationRequest{
		ConsiderIP: true,
	}

	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		n.logger.Debug().Err(err).Msg("WiFi scan unavailable")
	} else {
		req.WiFiAccessPoints = wifiAPs
	}

	cellTowers, err := getCellTowers(ctx, n.modemIndex)
	if err != nil {
		n.logger.Debug().Err(err).Msg("Cell tower scan unavailable")
	} else {
		req.CellTowers = cellTowers
	}

	resp, err := n.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Latitude:   resp.Location.Lat,
		Longitude:  resp.Location.Lng,
		Accuracy:   resp.Accuracy,
		CapturedAt: time.Now(),
		Source:     SourceNetwork,
	}, nil
}
