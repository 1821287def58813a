package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/pretty"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/cache"
	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/meta"
	"github.com/plsyncd/plsync/outfs"
	"github.com/plsyncd/plsync/reconcile"
	"github.com/plsyncd/plsync/spotify"
)

const spotdlBin = "spotdl"

type Spotify struct {
	out    outfs.Root
	cfg    *config.Config
	creds  config.Credentials
	client *spotify.Client
	cache  *cache.Containers
	logger zerolog.Logger
}

func NewSpotify(logger zerolog.Logger, out outfs.Root, cfg *config.Config, creds config.Credentials, client *spotify.Client) *Spotify {
	return &Spotify{
		out:    out,
		cfg:    cfg,
		creds:  creds,
		client: client,
		cache:  cache.NewContainers(),
		logger: logger,
	}
}

func (d *Spotify) Provider() linkfile.Provider {
	return linkfile.ProviderSpotify
}

// spotdlOutputTemplate picks the file layout for a link kind. Playlists
// number files by list position, albums by track number, and single tracks
// land in a directory named after themselves so reconciliation has a
// container to look at.
func spotdlOutputTemplate(kind meta.ContainerKind) string {
	switch kind {
	case meta.KindPlaylist:
		return "{list-name}/{list-position} {title} - {artists}.{output-ext}"
	case meta.KindAlbum:
		return "{list-name}/{track-number} {title} - {artists}.{output-ext}"
	case meta.KindArtist:
		return "{list-name}/{title} - {artists}.{output-ext}"
	case meta.KindTrack:
		return "{title}/{title} - {artists}.{output-ext}"
	default:
		return ""
	}
}

func (d *Spotify) Download(ctx context.Context, link string) (int, string) {
	errorsFile := d.out.ErrorsFile("errors", time.Now())

	args := []string{
		"--save-errors", errorsFile,
		"--client-id", d.creds.ClientID,
		"--client-secret", d.creds.ClientSecret,
	}
	if kind, _, err := spotify.ParseLink(link); nil == err {
		if template := spotdlOutputTemplate(kind); template != "" {
			args = append(args, "--output", template)
		}
	} else {
		d.logger.Warn().Str("link", shortLink(link)).Msg("Unrecognized Spotify link kind, falling back to default output layout")
	}
	args = append(args, "download", link)

	code := runTool(ctx, d.logger, d.out.Path(), d.cfg.DownloadTimeout.Std(), errorsFile, spotdlBin, args...)
	return code, errorsFile
}

// FetchMetadata fetches and caches the container behind a link, persisting
// the raw blob into the .metadata directory and the cover art into .icons.
// Persisting is best effort for the icon but not for the blob, which later
// reconciliation runs depend on.
func (d *Spotify) FetchMetadata(ctx context.Context, link string) (*meta.Container, error) {
	entry, err := d.cache.Fetch(link, cache.DefaultContainerTTL, func() (*cache.Entry, error) {
		blob, err := d.client.Resource(ctx, link)
		if nil != err {
			return nil, err
		}
		container, err := spotify.ContainerFromBlob(link, blob)
		if nil != err {
			return nil, err
		}
		return &cache.Entry{Container: container, Blob: blob}, nil
	})
	if nil != err {
		return nil, err
	}

	if err := d.persistMetadata(entry.Container.Name, entry.Blob); nil != err {
		return nil, err
	}
	d.persistIcon(ctx, entry.Container.Name, entry.Blob)
	return entry.Container, nil
}

func (d *Spotify) persistMetadata(name string, blob []byte) error {
	path := d.out.MetadataFile(name)
	if err := os.WriteFile(path, pretty.Pretty(blob), 0o0644); nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to write metadata file: %v", err)).Append(flawP)
	}
	return nil
}

func (d *Spotify) persistIcon(ctx context.Context, name string, blob []byte) {
	imageURL := spotify.ImageURL(blob)
	if imageURL == "" {
		return
	}
	path := d.out.IconFile(name)
	if _, err := os.Stat(path); nil == err {
		return
	}
	img, err := d.client.DownloadImage(ctx, imageURL)
	if nil != err {
		d.logger.Warn().Err(err).Str("container", name).Msg("Failed to download cover art")
		return
	}
	if err := os.WriteFile(path, img, 0o0644); nil != err {
		d.logger.Warn().Err(err).Str("path", path).Msg("Failed to write cover art file")
	}
}

// Reconcile reads a container's persisted metadata blob back and diffs the
// expected track list against the numbered files on disk.
func (d *Spotify) Reconcile(name string) ([]Outcome, error) {
	path := d.out.MetadataFile(name)
	blob, err := os.ReadFile(path)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			d.logger.Info().Str("container", name).Msg("No persisted metadata for container, cannot verify")
			return []Outcome{{Container: name, Result: reconcile.Result{Determined: false, Padding: 0, Missing: nil}}}, nil
		}
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to read metadata file: %v", err)).Append(flawP)
	}

	container, err := spotify.ContainerFromBlob("", blob)
	if nil != err {
		return nil, err
	}

	res, err := reconcile.Check(d.out.ContainerDir(name), reconcile.ExpectedFromContainer(container), d.cfg.AudioExts)
	if nil != err {
		return nil, err
	}
	return []Outcome{{Container: name, Result: res}}, nil
}
