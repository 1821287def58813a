package outfs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plsyncd/plsync/outfs"
)

func TestRootPaths(t *testing.T) {
	t.Parallel()

	r := outfs.From("/music")
	assert.Equal(t, "/music/MyMix", r.ContainerDir("MyMix"))
	assert.Equal(t, "/music/.metadata/MyMix.json", r.MetadataFile("MyMix"))
	assert.Equal(t, "/music/.metadata/MyMix.txt", r.DescriptionFile("MyMix"))
	assert.Equal(t, "/music/.icons/MyMix.jpg", r.IconFile("MyMix"))
	assert.Equal(t, "/music/plsync.log", r.LogFile())

	at := time.Date(2025, 6, 14, 10, 21, 43, 0, time.UTC)
	assert.Equal(t, "/music/.errors/errors-20250614102143.txt", r.ErrorsFile("errors", at))
	assert.Equal(t, "/music/.errors/scdl-20250614102143.txt", r.ErrorsFile("scdl", at))
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	r := outfs.From(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, r.Ensure())
	for _, dir := range []string{r.Path(), r.MetadataDir(), r.IconsDir(), r.ErrorsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
