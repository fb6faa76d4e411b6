package utils

import (
	"time"

	"github.com/tonikorin/tracker-agent/pkg/file"
)

// Config represents the structure of the agent configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate (empty = no TLS)
		QueryTopic    string `yaml:"query_topic"`    // Topic delivering inbound location queries
		QOS           int    `yaml:"qos"`            // MQTT QoS level for the query subscription
	} `yaml:"mqtt"`

	Location struct {
		GPSDevicePort       string        `yaml:"gps_device_port"`       // Serial port of the GPS sensor
		GPSDeviceBaudRate   int           `yaml:"gps_baud_rate"`         // Baud rate for the GPS sensor
		MapsAPIKey          string        `yaml:"maps_api_key"`          // Google Maps API key (empty = no network source)
		NetworkPollInterval time.Duration `yaml:"network_poll_interval"` // Geolocation API polling interval (in seconds)
		ModemIndex          int           `yaml:"modem_index"`           // mmcli modem index for cell scans
	} `yaml:"location"`

	Query struct {
		AccuracyMeters int           `yaml:"accuracy_meters"` // Default desired accuracy (in meters)
		Timeout        time.Duration `yaml:"timeout"`         // Default acquisition deadline (in seconds)
		RoundPrecision int           `yaml:"round_precision"` // Decimals kept on transmitted measurements
		Workers        int           `yaml:"workers"`         // Concurrent query workers
	} `yaml:"query"`

	Storage struct {
		TeamConfigFile string `yaml:"team_config_file"` // Path to the host-app supplied team configuration
		HistoryFile    string `yaml:"history_file"`     // Path to the persisted query history
	} `yaml:"storage"`
}

// LoadConfig loads the YAML configuration from the specified file.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
