package services

import (
	"github.com/rs/zerolog"
)

// Service is the interface for all plug-in services.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of the agent's services.
type ServiceRegistry struct {
	services    map[string]Service
	serviceKeys []string // registration order
	logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order. If a service
// fails to start, already started services are stopped again.
func (sr *ServiceRegistry) StartServices() error {
	started := []string{}

	for _, name := range sr.serviceKeys {
		sr.logger.Info().Msgf("Starting service: %s", name)
		if err := sr.services[name].Start(); err != nil {
			sr.logger.Error().Err(err).Msgf("Failed to start service: %s", name)
			for i := len(started) - 1; i >= 0; i-- {
				if stopErr := sr.services[started[i]].Stop(); stopErr != nil {
					sr.logger.Error().Err(stopErr).Msgf("Failed to stop service: %s", started[i])
				}
			}
			return err
		}
		started = append(started, name)
	}
	return nil
}

// StopServices stops all registered services in reverse order.
func (sr *ServiceRegistry) StopServices() {
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		sr.logger.Info().Msgf("Stopping service: %s", name)
		if err := sr.services[name].Stop(); err != nil {
			sr.logger.Error().Err(err).Msgf("Failed to stop service: %s", name)
		}
	}
}
