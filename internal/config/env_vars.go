package config

import (
	"os"
	"time"
)

const (
	appNameVar       = "EASYBASE_APP_NAME"
	baseURLVar       = "EASYBASE_BASE_URL"
	basePathVar      = "EASYBASE_BASE_PATH"
	httpTimeoutVar   = "EASYBASE_HTTP_TIMEOUT"
	checkIntervalVar = "EASYBASE_CHECK_INTERVAL"
	warningBufferVar = "EASYBASE_WARNING_BUFFER"
	refreshBufferVar = "EASYBASE_REFRESH_BUFFER"
	storagePathVar   = "EASYBASE_STORAGE_PATH"
	channelNameVar   = "EASYBASE_CHANNEL_NAME"
	logLevelVar      = "EASYBASE_LOG_LEVEL"
	devListenVar     = "EASYBASE_DEV_LISTEN"
	devSigningKeyVar = "EASYBASE_DEV_SIGNING_KEY"
	devAccessTTLVar  = "EASYBASE_DEV_ACCESS_TTL"
	devRefreshTTLVar = "EASYBASE_DEV_REFRESH_TTL"
)

// EnvVars resolves each setting as env var, then config file, then default.
type EnvVars struct {
	file *File
}

var _ Config = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.resolve(appNameVar, func(f *File) string { return f.App.Name }, "EasyBase Portal")
}

func (e EnvVars) GetBaseURL() string {
	return e.resolve(baseURLVar, func(f *File) string { return f.Server.BaseURL }, "http://localhost:8080")
}

func (e EnvVars) GetBasePath() string {
	return e.resolve(basePathVar, func(f *File) string { return f.Server.BasePath }, "/easy-base/api/auth")
}

func (e EnvVars) GetHTTPTimeout() time.Duration {
	return e.resolveDuration(httpTimeoutVar, func(f *File) string { return f.Server.HTTPTimeout }, 10*time.Second)
}

func (e EnvVars) GetCheckInterval() time.Duration {
	return e.resolveDuration(checkIntervalVar, func(f *File) string { return f.Session.CheckInterval }, 5*time.Minute)
}

func (e EnvVars) GetWarningBuffer() time.Duration {
	return e.resolveDuration(warningBufferVar, func(f *File) string { return f.Session.WarningBuffer }, 120*time.Second)
}

func (e EnvVars) GetRefreshBuffer() time.Duration {
	return e.resolveDuration(refreshBufferVar, func(f *File) string { return f.Session.RefreshBuffer }, 300*time.Second)
}

func (e EnvVars) GetStoragePath() string {
	return e.resolve(storagePathVar, func(f *File) string { return f.Storage.Path }, "")
}

func (e EnvVars) GetChannelName() string {
	return e.resolve(channelNameVar, func(f *File) string { return f.Channel.Name }, "easybase-auth")
}

func (e EnvVars) GetLogLevel() string {
	return e.resolve(logLevelVar, func(f *File) string { return f.App.LogLevel }, "info")
}

func (e EnvVars) GetDevListenAddr() string {
	return e.resolve(devListenVar, func(f *File) string { return f.Dev.Listen }, "localhost:8080")
}

func (e EnvVars) GetDevSigningKey() string {
	return e.resolve(devSigningKeyVar, func(f *File) string { return f.Dev.SigningKey }, "insecure-dev-signing-key")
}

func (e EnvVars) GetDevAccessTTL() time.Duration {
	return e.resolveDuration(devAccessTTLVar, func(f *File) string { return f.Dev.AccessTTL }, time.Hour)
}

func (e EnvVars) GetDevRefreshTTL() time.Duration {
	return e.resolveDuration(devRefreshTTLVar, func(f *File) string { return f.Dev.RefreshTTL }, 24*time.Hour)
}

func (e EnvVars) resolve(envVar string, fromFile func(*File) string, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if e.file != nil {
		if value := fromFile(e.file); value != "" {
			return value
		}
	}
	return defaultValue
}

// resolveDuration parses a Go duration string; unparsable values fall through
// to the default rather than failing startup.
func (e EnvVars) resolveDuration(envVar string, fromFile func(*File) string, defaultValue time.Duration) time.Duration {
	raw := e.resolve(envVar, fromFile, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
