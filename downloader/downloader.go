// Package downloader adapts the three external download tools behind one
// contract: run the tool for a link, fetch provider metadata, reconcile a
// container against what landed on disk.
package downloader

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/meta"
	"github.com/plsyncd/plsync/reconcile"
)

type Downloader interface {
	Provider() linkfile.Provider
	// Download invokes the external tool once for the link and reports its
	// exit code together with the path of the error capture file. A timeout
	// or spawn failure reports a non-zero code, never an error.
	Download(ctx context.Context, link string) (code int, errorsFile string)
	// FetchMetadata returns the expected-tracks container for the link, or
	// nil when the provider's metadata arrives as downloader sidecar files
	// instead of an API call.
	FetchMetadata(ctx context.Context, link string) (*meta.Container, error)
	// Reconcile diffs containers against their expected track lists. With a
	// name it checks that one container, with an empty name it checks every
	// container the provider left sidecar metadata for.
	Reconcile(name string) ([]Outcome, error)
}

// Outcome is one container's reconciliation verdict.
type Outcome struct {
	Container string
	Result    reconcile.Result
}

// runTool executes an external downloader with a wall clock timeout,
// streaming its output to the console and capturing stderr into
// errorsFile. The returned code is the process exit code, with 1 standing
// in for timeout and spawn failures.
func runTool(ctx context.Context, logger zerolog.Logger, workDir string, timeout time.Duration, errorsFile string, name string, args ...string) int {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout

	if err := os.MkdirAll(filepath.Dir(errorsFile), 0o0755); nil != err {
		logger.Error().Err(err).Str("path", errorsFile).Msg("Failed to create errors directory")
		return 1
	}
	capture, err := os.OpenFile(errorsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o0644)
	if nil != err {
		logger.Error().Err(err).Str("path", errorsFile).Msg("Failed to create error capture file")
		return 1
	}
	defer func() {
		if closeErr := capture.Close(); nil != closeErr {
			logger.Warn().Err(closeErr).Str("path", errorsFile).Msg("Failed to close error capture file")
		}
	}()
	cmd.Stderr = capture

	logger.Info().Str("command", name).Strs("args", args).Msg("Invoking external downloader")
	if err := cmd.Run(); nil != err {
		switch {
		case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
			logger.Warn().Str("command", name).Dur("timeout", timeout).Msg("External downloader timed out")
			return 1
		case errors.Is(ctx.Err(), context.Canceled):
			logger.Warn().Str("command", name).Msg("External downloader canceled")
			return 1
		}
		exitErr := new(exec.ExitError)
		if errors.As(err, &exitErr) {
			logger.Warn().Str("command", name).Int("code", exitErr.ExitCode()).Msg("External downloader finished with non-zero exit code")
			return exitErr.ExitCode()
		}
		logger.Error().Err(err).Str("command", name).Msg("Failed to run external downloader")
		return 1
	}

	logger.Info().Str("command", name).Msg("External downloader finished")
	return 0
}

func shortLink(link string) string {
	before, _, _ := strings.Cut(link, "?")
	return before
}
