package coordinator_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/coordinator"
	"github.com/plsyncd/plsync/downloader"
	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/meta"
	"github.com/plsyncd/plsync/outfs"
	"github.com/plsyncd/plsync/reconcile"
)

type fakeDownloader struct {
	provider   linkfile.Provider
	codes      map[string]int
	metaErr    error
	noMeta     bool
	panicOn    string
	downloaded *[]string
	reconciled []string
}

func (f *fakeDownloader) Provider() linkfile.Provider {
	return f.provider
}

func (f *fakeDownloader) Download(_ context.Context, link string) (int, string) {
	if link == f.panicOn {
		panic("boom")
	}
	*f.downloaded = append(*f.downloaded, link)
	return f.codes[link], filepath.Join("does", "not", "exist.txt")
}

func (f *fakeDownloader) FetchMetadata(_ context.Context, link string) (*meta.Container, error) {
	if nil != f.metaErr {
		return nil, f.metaErr
	}
	if f.noMeta {
		return nil, nil
	}
	return &meta.Container{Name: "c-" + link, URL: link, Kind: meta.KindPlaylist, ExpectedCount: 0, Tracks: nil}, nil
}

func (f *fakeDownloader) Reconcile(name string) ([]downloader.Outcome, error) {
	f.reconciled = append(f.reconciled, name)
	return []downloader.Outcome{{Container: name, Result: reconcile.Result{Determined: true, Padding: 0, Missing: nil}}}, nil
}

func newFakes(downloaded *[]string) (*fakeDownloader, *fakeDownloader, *fakeDownloader) {
	sc := &fakeDownloader{provider: linkfile.ProviderSoundCloud, codes: map[string]int{}, noMeta: true, downloaded: downloaded}
	yt := &fakeDownloader{provider: linkfile.ProviderYouTube, codes: map[string]int{}, noMeta: true, downloaded: downloaded}
	sp := &fakeDownloader{provider: linkfile.ProviderSpotify, codes: map[string]int{}, downloaded: downloaded}
	return sc, yt, sp
}

func linksOf(pairs ...linkfile.Link) linkfile.Links {
	return linkfile.Links{All: pairs}
}

func newCoordinator(t *testing.T, cfg *config.Config, ds ...downloader.Downloader) *coordinator.Coordinator {
	t.Helper()
	out := outfs.From(t.TempDir())
	require.NoError(t, out.Ensure())
	return coordinator.New(zerolog.Nop(), out, cfg, ds...)
}

func TestRunProcessesProvidersInOrder(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sp1", Provider: linkfile.ProviderSpotify},
		linkfile.Link{URL: "yt1", Provider: linkfile.ProviderYouTube},
		linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud},
		linkfile.Link{URL: "sc2", Provider: linkfile.ProviderSoundCloud},
	)
	code := c.Run(context.Background(), links)
	assert.Zero(t, code)
	assert.Equal(t, []string{"sc1", "sc2", "yt1", "sp1"}, downloaded)
}

func TestRunAggregatesLastNonZeroCode(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	sc.codes["sc1"] = 2
	sp.codes["sp1"] = 5
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud},
		linkfile.Link{URL: "yt1", Provider: linkfile.ProviderYouTube},
		linkfile.Link{URL: "sp1", Provider: linkfile.ProviderSpotify},
		linkfile.Link{URL: "sp2", Provider: linkfile.ProviderSpotify},
	)
	code := c.Run(context.Background(), links)
	assert.Equal(t, 5, code)
	// fail-soft keeps going after failures
	assert.Equal(t, []string{"sc1", "yt1", "sp1", "sp2"}, downloaded)
}

func TestRunFailFastStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	sc.codes["sc2"] = 3

	cfg := config.Default()
	cfg.FailFast = true
	c := newCoordinator(t, cfg, sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud},
		linkfile.Link{URL: "sc2", Provider: linkfile.ProviderSoundCloud},
		linkfile.Link{URL: "yt1", Provider: linkfile.ProviderYouTube},
	)
	code := c.Run(context.Background(), links)
	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"sc1", "sc2"}, downloaded)
}

func TestRunMetadataFailureSkipsReconciliationOnly(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	sp.metaErr = errors.New("metadata backend down")
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sp1", Provider: linkfile.ProviderSpotify},
		linkfile.Link{URL: "sp2", Provider: linkfile.ProviderSpotify},
	)
	code := c.Run(context.Background(), links)
	assert.Zero(t, code)
	assert.Equal(t, []string{"sp1", "sp2"}, downloaded)
	assert.Empty(t, sp.reconciled)
}

func TestRunReconcilesWithContainerName(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sp1", Provider: linkfile.ProviderSpotify},
		linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud},
	)
	code := c.Run(context.Background(), links)
	assert.Zero(t, code)
	assert.Equal(t, []string{"c-sp1"}, sp.reconciled)
	// sidecar providers reconcile the whole output tree
	assert.Equal(t, []string{""}, sc.reconciled)
}

func TestRunRecoversFromPanic(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	sc.panicOn = "sc1"
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	links := linksOf(
		linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud},
		linkfile.Link{URL: "sc2", Provider: linkfile.ProviderSoundCloud},
	)
	code := c.Run(context.Background(), links)
	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"sc2"}, downloaded)
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	var downloaded []string
	sc, yt, sp := newFakes(&downloaded)
	c := newCoordinator(t, config.Default(), sc, yt, sp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	links := linksOf(linkfile.Link{URL: "sc1", Provider: linkfile.ProviderSoundCloud})
	code := c.Run(ctx, links)
	assert.Equal(t, 1, code)
	assert.Empty(t, downloaded)
}
