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

const ytDlpBin = "yt-dlp"

const ytDlpOutputTemplate = "%(playlist)s/%(playlist_index)02d %(title)s.%(ext)s"

type YouTube struct {
	sidecarReconciler
}

func NewYouTube(logger zerolog.Logger, out outfs.Root, cfg *config.Config) *YouTube {
	return &YouTube{
		sidecarReconciler: sidecarReconciler{out: out, cfg: cfg, logger: logger},
	}
}

func (d *YouTube) Provider() linkfile.Provider {
	return linkfile.ProviderYouTube
}

func (d *YouTube) Download(ctx context.Context, link string) (int, string) {
	errorsFile := d.out.ErrorsFile("yt-dlp", time.Now())
	args := []string{
		"-x",
		"--audio-format", "mp3",
		"-o", ytDlpOutputTemplate,
		"--ignore-errors",
		"--no-abort-on-error",
		"--yes-playlist",
		"--write-info-json",
		"--write-playlist-metafiles",
		"--embed-thumbnail",
		link,
	}
	code := runTool(ctx, d.logger, d.out.Path(), d.cfg.DownloadTimeout.Std(), errorsFile, ytDlpBin, args...)
	return code, errorsFile
}

// FetchMetadata is a no-op: playlist metadata is written as sidecar files
// by the downloader itself.
func (d *YouTube) FetchMetadata(_ context.Context, _ string) (*meta.Container, error) {
	return nil, nil
}

func (d *YouTube) Reconcile(name string) ([]Outcome, error) {
	return d.reconcileAll(name)
}
