package config

import (
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize writes the default configuration to dir if it doesn't already
// have one and loads the result.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	configFs := afero.NewBasePathFs(osFs, dir)
	exists, err := afero.Exists(configFs, ConfigurationName)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	if exists {
		logger.Printf("Config already exists: %s\n", configPath)
	} else {
		if err := afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, err
		}
		logger.Printf("Wrote default config: %s\n", configPath)
	}

	return LoadFs(configFs)
}
