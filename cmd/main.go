package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/constant"
	"github.com/plsyncd/plsync/coordinator"
	"github.com/plsyncd/plsync/downloader"
	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/linkfile"
	"github.com/plsyncd/plsync/log"
	"github.com/plsyncd/plsync/outfs"
	"github.com/plsyncd/plsync/spotify"
)

const (
	flagConfigFilePath = "config"
	flagFailFast       = "fail-fast"
)

func main() {
	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	if err := newApp().Run(os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			return
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

// newApp builds the CLI. The canonical invocation is
// `plsync <input_file> <output_dir>` at the top level; `run` is kept as an
// explicit subcommand doing the same thing.
func newApp() *cli.App {
	flags := []cli.Flag{
		//nolint:exhaustruct
		&cli.StringFlag{
			Name:     flagConfigFilePath,
			Aliases:  []string{"c"},
			Usage:    "Config file path",
			Required: false,
		},
		//nolint:exhaustruct
		&cli.BoolFlag{
			Name:     flagFailFast,
			Usage:    "Stop at the first link whose download fails",
			Required: false,
		},
	}

	//nolint:exhaustruct
	return &cli.App{
		Name:      "plsync",
		Version:   constant.Version,
		Compiled:  constant.CompileTime,
		Suggest:   true,
		Usage:     "Batch music downloader with missing-track reconciliation",
		ArgsUsage: "<input_file> <output_dir>",
		Action:    run,
		Flags:     flags,
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "run",
				Aliases:   []string{"r"},
				Usage:     "Download every link in the input file and verify the results",
				ArgsUsage: "<input_file> <output_dir>",
				Action:    run,
				Flags:     flags,
			},
		},
	}
}

func run(cliCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)

	if cliCtx.NArg() != 2 {
		_ = cli.ShowAppHelp(cliCtx)
		return cli.Exit("expected exactly two arguments: <input_file> <output_dir>", 1)
	}
	inputFile := cliCtx.Args().Get(0)
	outputDir := cliCtx.Args().Get(1)

	var cfg *config.Config
	cfgFilePath := cliCtx.String(flagConfigFilePath)
	cfgEnv := os.Getenv("CONFIG")
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		c, err := config.FromFile(cfgFilePath)
		if nil != err {
			return fmt.Errorf("failed to load config file: %v", err)
		}
		cfg = c
	case cfgEnv != "":
		logger.Debug().Msg("Loading config from environment variable")
		c, err := config.FromString(cfgEnv)
		if nil != err {
			return fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		cfg = c
	default:
		cfg = config.Default()
	}
	if cliCtx.Bool(flagFailFast) {
		cfg.FailFast = true
	}

	links, err := linkfile.ParseFile(inputFile)
	if nil != err {
		_ = cli.ShowAppHelp(cliCtx)
		return cli.Exit(fmt.Sprintf("failed to read input file %q: %v", inputFile, err), 1)
	}
	if links.Len() == 0 {
		return cli.Exit(fmt.Sprintf("no links found in input file %q", inputFile), 1)
	}

	out := outfs.From(outputDir)
	if err := out.Ensure(); nil != err {
		return fmt.Errorf("failed to prepare output directory: %v", err)
	}

	logFile, err := os.OpenFile(out.LogFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o0644)
	if nil != err {
		return fmt.Errorf("failed to open run log file: %v", err)
	}
	defer func() {
		if closeErr := logFile.Close(); nil != closeErr {
			logger.Warn().Err(closeErr).Msg("Failed to close run log file")
		}
	}()
	logger = log.NewTee(os.Stdout, logFile).Level(zerolog.TraceLevel)
	logger.Info().Int("links", links.Len()).Str("input", inputFile).Str("output", outputDir).Msg("Starting run")

	creds, err := config.CredentialsFromEnv()
	if nil != err {
		return err
	}

	client := spotify.NewClient(creds)
	if err := client.Verify(ctx); nil != err {
		switch {
		case errutil.IsContext(ctx):
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return errors.New("credential verification timed out")
		case errors.Is(err, spotify.ErrUnauthorized):
			return errors.New("Spotify credentials were rejected. Check SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
		case errutil.IsFlaw(err):
			return err
		default:
			panic(errutil.UnknownError(err))
		}
	}
	logger.Debug().Msg("Spotify credentials verified")

	c := coordinator.New(
		logger,
		out,
		cfg,
		downloader.NewSoundCloud(logger.With().Str("module", "soundcloud").Logger(), out, cfg),
		downloader.NewYouTube(logger.With().Str("module", "youtube").Logger(), out, cfg),
		downloader.NewSpotify(logger.With().Str("module", "spotify").Logger(), out, cfg, creds, client),
	)

	code := c.Run(ctx, links)
	if err := ctx.Err(); nil != err {
		return context.Canceled
	}
	if code != 0 {
		logger.Error().Int("code", code).Msg("Run finished with failures")
		return cli.Exit("", code)
	}
	logger.Info().Msg("Run finished successfully")
	return nil
}
