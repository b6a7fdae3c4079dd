package sqlreplay

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("sqlreplay")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module} %{level:.4s} ▶ %{message}`,
)

const (
	LogLevelEnv     = "SQLREPLAY_LOG_LEVEL"
	DefaultLogLevel = "NOTICE"
)

// SetupLogging installs a stderr backend for every module logger. An empty
// level falls back to $SQLREPLAY_LOG_LEVEL, then NOTICE.
func SetupLogging(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnv)
	}
	if level == "" {
		level = DefaultLogLevel
	}
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return err
	}
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), stderrFormat)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}
