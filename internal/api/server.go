package api

import (
	"context"
	"strings"

	"medroute/internal/config"
	"medroute/internal/engine"
	"medroute/internal/geo"
	"medroute/internal/metrics"
	"medroute/internal/store"
	"medroute/internal/webhooks"
)

type Server struct {
	Store     store.Store
	Pub       *webhooks.Publisher
	Broker    EventBroker
	Geo       geo.Geocoder
	Fleet     []engine.VehicleSpec
	Engine    engine.Config
	Positions *PositionCache
}

// NewServer wires the server from configuration: the Postgres store when
// DATABASE_URL is set (in-memory otherwise), the Redis broker when
// REDIS_URL is set (in-process otherwise), and a geocoder chain that
// resolves fleet bases from the static table before going external.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	var fleet []engine.VehicleSpec
	bases := map[string]geo.Point{}
	if cfg.FleetFile != "" {
		var err error
		fleet, bases, err = config.LoadFleet(cfg.FleetFile)
		if err != nil {
			return nil, err
		}
	}

	chain := geo.Chain{geo.NewStatic(bases)}
	if cfg.GeocoderURL != "" {
		chain = append(chain, geo.NewHTTPGeocoder(cfg.GeocoderURL, cfg.GeocoderCountry, cfg.GeocoderRPS, cfg.GeocoderTimeout))
	}

	return &Server{
		Store:     s,
		Pub:       webhooks.NewPublisher(s),
		Broker:    broker,
		Geo:       countingGeocoder{chain},
		Fleet:     fleet,
		Engine:    cfg.Engine,
		Positions: NewPositionCache(),
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

// countingGeocoder feeds lookup outcomes into the metrics registry.
type countingGeocoder struct {
	inner geo.Geocoder
}

func (c countingGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	p, err := c.inner.Geocode(ctx, address)
	switch {
	case err == nil:
		metrics.GeocodeLookups.WithLabelValues("hit").Inc()
	case geo.IsNotFound(err):
		metrics.GeocodeLookups.WithLabelValues("miss").Inc()
	default:
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
	}
	return p, err
}
