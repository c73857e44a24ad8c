package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/notify-event/internal/logger"
)

func TestNewLevelAndFormat(t *testing.T) {
	log := logger.New(logger.Options{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)

	log = logger.New(logger.Options{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok = log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.log")
	log := logger.New(logger.Options{Level: "info", File: path})
	log.WithField("messageId", "abc").Info("hello")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"messageId":"abc"`)
	assert.Contains(t, string(b), `"message":"hello"`)
}
