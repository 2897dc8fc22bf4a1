// Package config loads process settings from the environment and replication
// jobs from YAML files.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "RIDSYNC"

// Settings holds process-wide configuration, typically populated from the
// .env file loaded in main.
type Settings struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// MongoURI enables the run journal when set.
	MongoURI          string `envconfig:"MONGO_URI"`
	MongoDatabase     string `envconfig:"MONGO_DATABASE" default:"ridsync"`
	JournalCollection string `envconfig:"JOURNAL_COLLECTION" default:"runs"`

	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`
}

func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to read %s_* environment: %w", EnvPrefix, err)
	}
	return &s, nil
}

// JournalEnabled reports whether runs should be recorded in MongoDB.
func (s *Settings) JournalEnabled() bool {
	return s.MongoURI != ""
}
