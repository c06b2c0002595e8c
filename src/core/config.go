// Utilities for reading the runfiles config files.

package core

import (
	"fmt"
	"os"

	"github.com/please-build/gcfg"
)

// ConfigFileName is the name of the typical repo config file - this is normally checked in.
const ConfigFileName = ".runfilesconfig"

// LocalConfigFileName is the name of the local config file - this is not normally
// checked in and is used to override settings on the local machine.
const LocalConfigFileName = ".runfilesconfig.local"

func readConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil // It's not an error to not have the file at all.
	} else if err != nil {
		return err
	}
	log.Debug("Read config from %s", filename)
	return nil
}

// ReadConfigFiles reads the config files from the given locations, in order.
// Values are filled in by defaults initially and then overridden by each file in turn.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	if err := ValidateWorkspaceName(config.Runfiles.WorkspaceName); err != nil {
		return config, err
	}
	if config.Metrics.PushGatewayURL != "" && config.Metrics.PushTimeout <= 0 {
		return config, fmt.Errorf("Invalid metrics push timeout: %d", config.Metrics.PushTimeout)
	}
	return config, nil
}

// DefaultConfiguration returns the configuration before any file is applied.
func DefaultConfiguration() *Configuration {
	config := Configuration{}
	config.Runfiles.WorkspaceName = "_main"
	config.Runfiles.SymlinksMode = SymlinksCreate
	config.Runfiles.BuildRunfileLinks = true
	config.Runfiles.ConflictPolicy = ConflictWarn
	config.Metrics.PushTimeout = 5 // Five seconds
	return &config
}

// Configuration holds the settings read from a .runfilesconfig file.
type Configuration struct {
	Runfiles struct {
		WorkspaceName          string
		SymlinksMode           SymlinksMode
		BuildRunfileLinks      bool
		LegacyExternalRunfiles bool
		ConflictPolicy         ConflictPolicy
	}
	Metrics struct {
		PushGatewayURL string
		PushTimeout    int
	}
}
