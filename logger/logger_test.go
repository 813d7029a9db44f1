package logger

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("nonsense"))
}

func TestCustomFormatter(t *testing.T) {
	f := &CustomFormatter{TimestampFormat: "2006"}
	entry := &logrus.Entry{
		Time:    time.Date(2013, 12, 28, 0, 0, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "page flushed\n",
		Data:    logrus.Fields{"page": 7, "file": 2},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "[2013] [WARN]")
	assert.Contains(t, line, "page flushed file=2 page=7\n")
}

func TestInitLoggerWithFiles(t *testing.T) {
	dir := t.TempDir()
	err := InitLogger(LogConfig{
		ErrorLogPath: filepath.Join(dir, "logs", "error.log"),
		InfoLogPath:  filepath.Join(dir, "logs", "info.log"),
		LogLevel:     "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	var buf bytes.Buffer
	SetOutput(&buf, "info")
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	WithFields(logrus.Fields{"session": "abc"}).Info("started")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "session=abc")
}
