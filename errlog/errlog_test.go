package errlog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plsyncd/plsync/errlog"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	t.Run("lookup_not_found", func(t *testing.T) {
		t.Parallel()

		rec, ok := errlog.ParseLine("https://open.spotify.com/track/ABC - LookupError: No results found for song: Artist One, Artist Two - Song Title")
		require.True(t, ok)
		assert.Equal(t, errlog.CategoryLookupNotFound, rec.Category)
		assert.Equal(t, "https://open.spotify.com/track/ABC", rec.TrackURL)
		assert.Equal(t, "Song Title", rec.Title)
		assert.Equal(t, []string{"Artist One", "Artist Two"}, rec.Artists)
		assert.Empty(t, rec.FallbackURL)
	})

	t.Run("lookup_title_after_last_separator", func(t *testing.T) {
		t.Parallel()

		rec, ok := errlog.ParseLine("https://open.spotify.com/track/X - LookupError: No results found for song: Solo - Deep - Cuts")
		require.True(t, ok)
		assert.Equal(t, "Cuts", rec.Title)
		assert.Equal(t, []string{"Solo - Deep"}, rec.Artists)
	})

	t.Run("metadata_key_error", func(t *testing.T) {
		t.Parallel()

		rec, ok := errlog.ParseLine("https://open.spotify.com/track/2ZXsTQ8d1c75zMEJH0uj1R - KeyError: 'webCommandMetadata'")
		require.True(t, ok)
		assert.Equal(t, errlog.CategoryMetadataKey, rec.Category)
		assert.Equal(t, "https://open.spotify.com/track/2ZXsTQ8d1c75zMEJH0uj1R", rec.TrackURL)
		assert.Empty(t, rec.Title)
		assert.Empty(t, rec.Artists)
	})

	t.Run("audio_backend_error", func(t *testing.T) {
		t.Parallel()

		rec, ok := errlog.ParseLine("https://open.spotify.com/track/0PBQS0GycsYJ4yJJRjAIXU - AudioProviderError: YT-DLP download error - https://music.youtube.com/watch?v=ceXJTfuie6k")
		require.True(t, ok)
		assert.Equal(t, errlog.CategoryAudioBackend, rec.Category)
		assert.Equal(t, "https://music.youtube.com/watch?v=ceXJTfuie6k", rec.FallbackURL)
		assert.Empty(t, rec.Title)
		assert.Empty(t, rec.Artists)
	})

	t.Run("unrecognized_description_preserved", func(t *testing.T) {
		t.Parallel()

		rec, ok := errlog.ParseLine("https://open.spotify.com/track/QQQ - SomeNewError: it broke")
		require.True(t, ok)
		assert.Equal(t, errlog.CategoryUnrecognized, rec.Category)
		assert.Equal(t, "https://open.spotify.com/track/QQQ", rec.TrackURL)
		assert.Equal(t, "SomeNewError: it broke", rec.Raw)
	})

	t.Run("noise_skipped", func(t *testing.T) {
		t.Parallel()

		for _, line := range []string{
			"",
			"   ",
			"Processing query...",
			"https://open.spotify.com/playlist/xyz - not a track line",
		} {
			_, ok := errlog.ParseLine(line)
			assert.False(t, ok, "line: %q", line)
		}
	})
}

func TestParse(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"https://open.spotify.com/track/A - LookupError: No results found for song: NOTION - Dreams",
		"",
		"random noise",
		"https://open.spotify.com/track/B - KeyError: 'webCommandMetadata'",
	}, "\n")

	records, err := errlog.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, errlog.CategoryLookupNotFound, records[0].Category)
	assert.Equal(t, []string{"NOTION"}, records[0].Artists)
	assert.Equal(t, "Dreams", records[0].Title)
	assert.Equal(t, errlog.CategoryMetadataKey, records[1].Category)
}

func TestParseFileMissing(t *testing.T) {
	t.Parallel()

	records, err := errlog.ParseFile("/nonexistent/errors.txt")
	require.Error(t, err)
	assert.Empty(t, records)
}
