package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck
	logger.Info("production logger ready")
}

func TestStageNamesAndTagsTheLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	Stage(zap.New(core), "download").Info("stage finished")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "download", entries[0].LoggerName)
	require.Equal(t, "download", entries[0].ContextMap()["stage"])
}
