// Package config resolves portal SDK settings from an optional YAML file with
// environment variable overrides. Environment always wins over the file, the
// file over built-in defaults.
package config

import "time"

type Config interface {
	PortalConfig
	DevServerConfig
}

// PortalConfig covers the settings the session store and auth client consume.
type PortalConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetBasePath() string
	GetHTTPTimeout() time.Duration
	GetCheckInterval() time.Duration
	GetWarningBuffer() time.Duration
	GetRefreshBuffer() time.Duration
	GetStoragePath() string
	GetChannelName() string
	GetLogLevel() string
}

// DevServerConfig covers the embedded dev auth server.
type DevServerConfig interface {
	GetDevListenAddr() string
	GetDevSigningKey() string
	GetDevAccessTTL() time.Duration
	GetDevRefreshTTL() time.Duration
}

type mainConfig struct {
	EnvVars
}

// New loads the config file at path ("" means the default location; a missing
// file is fine) and layers environment overrides on top.
func New(path string) (Config, error) {
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return mainConfig{EnvVars{file: file}}, nil
}
