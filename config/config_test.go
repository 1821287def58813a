package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plsyncd/plsync/config"
)

func TestFromString(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.FromString("")
		require.NoError(t, err)
		assert.False(t, cfg.FailFast)
		assert.Equal(t, time.Hour, cfg.DownloadTimeout.Std())
		assert.Equal(t, []string{".mp3", ".flac", ".m4a"}, cfg.AudioExts)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.FromString("fail_fast: true\ndownload_timeout: 30m\naudio_exts: [.ogg, .mp3]\n")
		require.NoError(t, err)
		assert.True(t, cfg.FailFast)
		assert.Equal(t, 30*time.Minute, cfg.DownloadTimeout.Std())
		assert.Equal(t, []string{".ogg", ".mp3"}, cfg.AudioExts)
	})

	t.Run("invalid_extension", func(t *testing.T) {
		t.Parallel()

		_, err := config.FromString("audio_exts: [mp3]\n")
		require.Error(t, err)
	})

	t.Run("negative_timeout", func(t *testing.T) {
		t.Parallel()

		_, err := config.FromString("download_timeout: -1s\n")
		require.Error(t, err)
	})
}
