package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tonikorin/tracker-agent/internal/history"
	"github.com/tonikorin/tracker-agent/internal/services"
	"github.com/tonikorin/tracker-agent/internal/utils"
	"github.com/tonikorin/tracker-agent/pkg/file"
	"github.com/tonikorin/tracker-agent/pkg/location"
	"github.com/tonikorin/tracker-agent/pkg/mqtt"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Unique client ID per agent instance
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	teamConfig := utils.NewTeamConfigStore(config.Storage.TeamConfigFile, fileClient, logger)
	if err := teamConfig.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load team configuration")
	}

	historyStore := history.NewStore(config.Storage.HistoryFile, fileClient, logger)
	if err := historyStore.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load query history")
	}

	// Position sources share one last-known cache, so a cached fix from any
	// earlier acquisition can still serve a deadline fallback.
	cache := location.NewLastKnownCache()
	sources := []location.PositionSource{
		location.NewGPSSource(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate, cache, logger),
	}
	if config.Location.MapsAPIKey != "" {
		pollInterval := config.Location.NetworkPollInterval * time.Second
		if pollInterval <= 0 {
			pollInterval = 10 * time.Second
		}
		networkSource, err := location.NewNetworkSource(config.Location.MapsAPIKey, pollInterval,
			config.Location.ModemIndex, cache, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create network position source")
		}
		sources = append(sources, networkSource)
	}

	workers := config.Query.Workers
	if workers <= 0 {
		workers = 4
	}
	pool := utils.NewWorkerPool(workers)

	queryService := services.NewQueryService(
		config.MQTT.QueryTopic,
		config.MQTT.QOS,
		services.QuerySettings{
			AccuracyMeters: config.Query.AccuracyMeters,
			Timeout:        config.Query.Timeout * time.Second,
			RoundPrecision: config.Query.RoundPrecision,
		},
		mqttClient,
		teamConfig,
		historyStore,
		pool,
		func() services.LocationAcquirer {
			return location.NewAcquirer(sources, logger)
		},
		services.DefaultRelayFactory(&http.Client{Timeout: 30 * time.Second}, logger),
		nil,
		logger,
	)

	serviceRegistry := services.NewServiceRegistry(logger)
	serviceRegistry.RegisterService("query", queryService)

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	serviceRegistry.StopServices()
	pool.Shutdown()
	mqttClient.Disconnect(250)
}
