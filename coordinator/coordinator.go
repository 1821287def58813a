// Package coordinator drives a whole run: every link of every provider,
// in the fixed provider order, each one downloaded, verified against its
// metadata, and its failure log folded into the report.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/downloader"
	"github.com/plsyncd/plsync/errlog"
	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/log"
	"github.com/plsyncd/plsync/must"
	"github.com/plsyncd/plsync/outfs"
)

type Coordinator struct {
	logger      zerolog.Logger
	out         outfs.Root
	cfg         *config.Config
	downloaders map[linkfile.Provider]downloader.Downloader
}

func New(logger zerolog.Logger, out outfs.Root, cfg *config.Config, downloaders ...downloader.Downloader) *Coordinator {
	byProvider := make(map[linkfile.Provider]downloader.Downloader, len(downloaders))
	for _, d := range downloaders {
		byProvider[d.Provider()] = d
	}
	return &Coordinator{
		logger:      logger,
		out:         out,
		cfg:         cfg,
		downloaders: byProvider,
	}
}

// Run processes every link and returns the aggregate exit code: zero when
// every download succeeded, otherwise the code of the last failing one.
// With fail_fast set the first failing link ends the run immediately.
func (c *Coordinator) Run(ctx context.Context, links linkfile.Links) int {
	exitCode := 0
	for _, provider := range linkfile.Order {
		d, ok := c.downloaders[provider]
		if !ok {
			continue
		}
		providerLinks := links.Of(provider)
		if len(providerLinks) == 0 {
			continue
		}
		c.logger.Info().Str("provider", string(provider)).Int("links", len(providerLinks)).Msg("Processing provider links")

		for _, link := range providerLinks {
			if err := ctx.Err(); nil != err {
				c.logger.Warn().Msg("Run canceled, stopping")
				return 1
			}
			code := c.processLink(ctx, d, link)
			if code != 0 {
				exitCode = code
				if c.cfg.FailFast {
					c.logger.Error().Int("code", code).Str("link", link).Msg("Link failed, stopping early")
					return exitCode
				}
			}
		}
	}
	return exitCode
}

func (c *Coordinator) processLink(ctx context.Context, d downloader.Downloader, link string) (code int) {
	logger := c.logger.With().Str("provider", string(d.Provider())).Str("link", link).Logger()
	defer func() {
		if r := recover(); nil != r {
			logger.Error().Func(log.Panic(r)).Msg("Recovered from panic while processing link")
			code = 1
		}
	}()

	code, errorsFile := d.Download(ctx, link)
	if err := ctx.Err(); nil != err {
		return code
	}

	container, err := d.FetchMetadata(ctx, link)
	switch {
	case nil == err:
		containerName := ""
		if nil != container {
			containerName = container.Name
			logger.Info().Str("container", container.Name).Int("expected", container.ExpectedCount).Msg("Fetched container metadata")
		}
		c.reconcileAndReport(logger, d, containerName)
	case errutil.IsContext(ctx):
		return code
	default:
		// metadata failure blocks this link's verification only
		if cause, is := errutil.IsAny(err, context.DeadlineExceeded); is {
			logger.Warn().Err(cause).Msg("Metadata request timed out, skipping verification")
			break
		}
		logger.Error().Err(err).Msg("Failed to fetch container metadata, skipping verification")
		c.dumpFlaw(logger, err)
	}

	c.reportFailureLog(logger, errorsFile)
	return code
}

func (c *Coordinator) reconcileAndReport(logger zerolog.Logger, d downloader.Downloader, containerName string) {
	outcomes, err := d.Reconcile(containerName)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to reconcile downloaded files")
		c.dumpFlaw(logger, err)
		return
	}

	for _, outcome := range outcomes {
		switch {
		case !outcome.Result.Determined:
			logger.Info().Str("container", outcome.Container).Msg("No numbered files found, cannot verify container")
		case outcome.Result.Complete():
			logger.Info().Str("container", outcome.Container).Msg("All expected tracks present")
		default:
			logger.Warn().
				Str("container", outcome.Container).
				Int("missing", len(outcome.Result.Missing)).
				Msg("Container has missing tracks")
			for _, rec := range outcome.Result.Missing {
				evt := logger.Warn().Str("container", rec.Container).Str("tag", rec.Tag)
				if rec.Title != "" {
					evt = evt.Str("title", rec.Title).Strs("artists", rec.Artists)
				}
				if rec.URL != "" {
					evt = evt.Str("url", rec.URL)
				}
				evt.Msg("Missing track")
			}
		}
	}
}

func (c *Coordinator) reportFailureLog(logger zerolog.Logger, errorsFile string) {
	if _, err := os.Stat(errorsFile); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", errorsFile).Msg("Failed to stat downloader failure log")
		}
		return
	}
	failures, err := errlog.ParseFile(errorsFile)
	if nil != err {
		logger.Warn().Err(err).Str("path", errorsFile).Msg("Failed to parse downloader failure log")
		return
	}
	for _, failure := range failures {
		evt := logger.Warn().Str("category", string(failure.Category)).Str("track_url", failure.TrackURL)
		switch failure.Category {
		case errlog.CategoryLookupNotFound:
			evt = evt.Str("title", failure.Title).Strs("artists", failure.Artists)
		case errlog.CategoryAudioBackend:
			evt = evt.Str("fallback_url", failure.FallbackURL)
		case errlog.CategoryUnrecognized:
			evt = evt.Str("description", failure.Raw)
		case errlog.CategoryMetadataKey:
		}
		evt.Msg("Downloader reported track failure")
	}
}

// dumpFlaw writes the structured diagnostics of an unexpected failure next
// to the downloader error captures.
func (c *Coordinator) dumpFlaw(logger zerolog.Logger, err error) {
	if !errutil.IsFlaw(err) {
		return
	}
	yamlBytes, yamlErr := errutil.FlawToYAML(must.BeFlaw(err))
	if nil != yamlErr {
		logger.Warn().Err(yamlErr).Msg("Failed to encode failure diagnostics")
		return
	}
	path := c.out.ErrorsFile("flaw", time.Now())
	if writeErr := os.WriteFile(path, yamlBytes, 0o0644); nil != writeErr {
		flawP := flaw.P{"path": path}
		logger.Warn().Err(flaw.From(fmt.Errorf("failed to write failure diagnostics: %v", writeErr)).Append(flawP)).Msg("Failed to write failure diagnostics")
		return
	}
	logger.Info().Str("path", path).Msg("Failure diagnostics written")
}
