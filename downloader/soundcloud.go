package downloader

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/meta"
	"github.com/plsyncd/plsync/outfs"
)

const scdlBin = "scdl"

// scdl numbers playlist files itself but the sidecar metadata comes from
// its yt-dlp backend, hence the forwarded args.
const (
	scdlNameFormat = "%(playlist)s/%(playlist_index)04d %(uploader)s - %(title)s.%(ext)s"
	scdlYtDlpArgs  = "--write-info-json --ignore-errors --no-abort-on-error --yes-playlist --embed-thumbnail --audio-quality 1"
)

type SoundCloud struct {
	sidecarReconciler
}

func NewSoundCloud(logger zerolog.Logger, out outfs.Root, cfg *config.Config) *SoundCloud {
	return &SoundCloud{
		sidecarReconciler: sidecarReconciler{out: out, cfg: cfg, logger: logger},
	}
}

func (d *SoundCloud) Provider() linkfile.Provider {
	return linkfile.ProviderSoundCloud
}

func (d *SoundCloud) Download(ctx context.Context, link string) (int, string) {
	errorsFile := d.out.ErrorsFile("scdl", time.Now())
	args := []string{
		"-l", link,
		"--path", d.out.Path(),
		"--no-playlist-folder",
		"--playlist-name-format", scdlNameFormat,
		"--onlymp3",
		"--original-art",
		"-c",
		"--yt-dlp-args", scdlYtDlpArgs,
	}
	code := runTool(ctx, d.logger, d.out.Path(), d.cfg.DownloadTimeout.Std(), errorsFile, scdlBin, args...)
	return code, errorsFile
}

// FetchMetadata is a no-op: SoundCloud metadata arrives as sidecar files
// written during the download itself.
func (d *SoundCloud) FetchMetadata(_ context.Context, _ string) (*meta.Container, error) {
	return nil, nil
}

func (d *SoundCloud) Reconcile(name string) ([]Outcome, error) {
	return d.reconcileAll(name)
}
