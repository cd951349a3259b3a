package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Log         = logrus.New()
	InfoLogger  = Log.WithField("level_tag", "info")
	WarnLogger  = Log.WithField("level_tag", "warn")
	ErrorLogger = Log.WithField("level_tag", "error")
)

// Init routes logs to stdout and a rotated file under dir. An empty dir
// keeps stdout only.
func Init(dir, ginMode string) {
	Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	if strings.EqualFold(ginMode, "debug") || ginMode == "" {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}

	var out io.Writer = os.Stdout
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			Log.Warnf("logger: cannot create %s: %v", dir, err)
		} else {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   filepath.Join(dir, "app.log"),
				MaxSize:    20,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			})
		}
	}
	Log.SetOutput(out)
}

// Event returns an entry tagged the same way for every module/action pair.
// Never pass credentials or full account numbers as fields.
func Event(requestID, module, action string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"request_id": strings.TrimSpace(requestID),
		"module":     strings.ToUpper(module),
		"action":     action,
	})
}
