package location

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

const knotsToMetersPerSecond = 0.514444

// GPSSource reads NMEA sentences from a GPS device connected via serial port.
// GGA sentences supply altitude and an HDOP-derived accuracy estimate, RMC
// sentences supply position, speed and course; each RMC emits one fix.
type GPSSource struct {
	port     string // serial port the GPS device is connected to
	baudRate int
	cache    *LastKnownCache
	logger   zerolog.Logger
}

// NewGPSSource creates a GPS source for the specified port and baud rate.
func NewGPSSource(port string, baudRate int, cache *LastKnownCache, logger zerolog.Logger) *GPSSource {
	return &GPSSource{
		port:     port,
		baudRate: baudRate,
		cache:    cache,
		logger:   logger,
	}
}

// Kind identifies this source as satellite-based.
func (g *GPSSource) Kind() SourceKind {
	return SourceSatellite
}

// Available probes the serial port. A port that cannot be opened means the
// device is absent or not permitted, and the source must not join the race.
func (g *GPSSource) Available() bool {
	s, err := serial.OpenPort(&serial.Config{Name: g.port, Baud: g.baudRate})
	if err != nil {
		return false
	}
	s.Close()
	return true
}

// Subscribe opens the serial port and streams fixes until ctx is cancelled.
func (g *GPSSource) Subscribe(ctx context.Context) (<-chan Fix, error) {
	s, err := serial.OpenPort(&serial.Config{Name: g.port, Baud: g.baudRate})
	if err != nil {
		return nil, err
	}

	out := make(chan Fix)

	// Closing the port unblocks the scanner when the context ends.
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	go func() {
		defer close(out)

		var altitude, accuracy float64
		scanner := bufio.NewScanner(s)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "$") {
				continue
			}
			sentence, err := nmea.Parse(line)
			if err != nil {
				// partial or noisy sentences are common on serial GPS units
				continue
			}

			switch sentence.DataType() {
			case nmea.TypeGGA:
				gga := sentence.(nmea.GGA)
				altitude = gga.Altitude
				accuracy = float64(gga.HDOP) * hdopBaseMeters
			case nmea.TypeRMC:
				rmc := sentence.(nmea.RMC)
				if rmc.Validity != nmea.ValidRMC {
					continue
				}
				fix := Fix{
					Latitude:   rmc.Latitude,
					Longitude:  rmc.Longitude,
					Accuracy:   accuracy,
					Altitude:   altitude,
					Bearing:    rmc.Course,
					Speed:      rmc.Speed * knotsToMetersPerSecond,
					CapturedAt: time.Now(),
					Source:     SourceSatellite,
				}
				g.cache.Record(fix)
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			g.logger.Warn().Err(err).Str("port", g.port).Msg("GPS serial read failed")
		}
	}()

	return out, nil
}

// LastKnown returns the most recent fix this source kind has produced.
func (g *GPSSource) LastKnown() (Fix, bool) {
	return g.cache.Lookup(SourceSatellite)
}

// hdopBaseMeters converts HDOP into a rough horizontal accuracy estimate,
// assuming a ~5 m base pseudorange error for consumer receivers.
const hdopBaseMeters = 5.0
