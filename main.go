// Package main runs the MPEG audio analysis server and command line tool.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mpegaudio-backend/handlers"
	"mpegaudio-backend/mp3parser"
)

const (
	flagDebug            = "debug"
	flagPort             = "port"
	flagAllowedOrigins   = "allowed-origins"
	flagMaxUploadMB      = "max-upload-mb"
	flagValidCheckFrames = "valid-check-frames"
	flagHistogram        = "histogram"
	flagJSON             = "json"
	flagVerify           = "verify"
)

func main() {
	var logger *zap.Logger

	analyzerFlags := []cli.Flag{
		&cli.IntFlag{
			Name:    flagValidCheckFrames,
			Usage:   "frames that must follow the first sync before it is trusted",
			Value:   mp3parser.DefaultOptions().ValidCheckFrames,
			EnvVars: []string{"VALID_CHECK_FRAMES"},
		},
		&cli.StringFlag{
			Name:    flagHistogram,
			Usage:   "when to scan every frame: auto, always or never",
			Value:   string(mp3parser.HistogramAuto),
			EnvVars: []string{"HISTOGRAM"},
		},
	}

	app := &cli.App{
		Name:  "mpegaudio",
		Usage: "inspect MPEG audio streams",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := zap.NewProductionConfig()
			if c.Bool(flagDebug) {
				cfg = zap.NewDevelopmentConfig()
			}
			var err error
			logger, err = cfg.Build()
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    flagPort,
						Value:   "8080",
						EnvVars: []string{"PORT"},
					},
					&cli.StringSliceFlag{
						Name:    flagAllowedOrigins,
						Value:   cli.NewStringSlice("http://localhost:3000"),
						EnvVars: []string{"ALLOWED_ORIGINS"},
					},
					&cli.Int64Flag{
						Name:    flagMaxUploadMB,
						Value:   32,
						EnvVars: []string{"MAX_UPLOAD_MB"},
					},
				}, analyzerFlags...),
				Action: func(c *cli.Context) error {
					return serve(c, logger)
				},
			},
			{
				Name:      "analyze",
				Usage:     "analyze MPEG audio files",
				ArgsUsage: "<file> [file...]",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print the full result as JSON",
					},
					&cli.BoolFlag{
						Name:  flagVerify,
						Usage: "decode the audio and compare it with the analysis",
					},
				}, analyzerFlags...),
				Action: func(c *cli.Context) error {
					return analyzeFiles(c, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func analyzerOptions(c *cli.Context) (mp3parser.Options, error) {
	policy, ok := mp3parser.ParseHistogramPolicy(c.String(flagHistogram))
	if !ok {
		return mp3parser.Options{}, errors.Errorf("invalid histogram policy %q", c.String(flagHistogram))
	}
	opts := mp3parser.DefaultOptions()
	opts.ValidCheckFrames = c.Int(flagValidCheckFrames)
	opts.Histogram = policy
	return opts, nil
}

func serve(c *cli.Context, logger *zap.Logger) error {
	opts, err := analyzerOptions(c)
	if err != nil {
		return err
	}
	config := handlers.Config{
		AllowedOrigins: c.StringSlice(flagAllowedOrigins),
		MaxUploadBytes: c.Int64(flagMaxUploadMB) << 20,
		Options:        opts,
	}
	router := handlers.NewRouter(logger, config)

	port := c.String(flagPort)
	logger.Info("server starting",
		zap.String("port", port),
		zap.Strings("allowed_origins", config.AllowedOrigins),
		zap.Int("valid_check_frames", opts.ValidCheckFrames),
		zap.String("histogram", string(opts.Histogram)))
	logger.Info("API endpoints",
		zap.Strings("routes", []string{
			"POST /api/v1/analyze - analyze an uploaded MPEG audio file",
			"GET  /api/v1/health  - health check",
		}))

	return errors.Wrap(router.Run(":"+port), "failed to start server")
}

func analyzeFiles(c *cli.Context, logger *zap.Logger) error {
	if c.NArg() == 0 {
		return errors.New("no files given")
	}
	opts, err := analyzerOptions(c)
	if err != nil {
		return err
	}
	for _, path := range c.Args().Slice() {
		if err := analyzeFile(c.App.Writer, logger, path, opts, c.Bool(flagVerify), c.Bool(flagJSON)); err != nil {
			return errors.Wrap(err, path)
		}
	}
	return nil
}

func analyzeFile(w io.Writer, logger *zap.Logger, path string, opts mp3parser.Options, verify, asJSON bool) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	resp, err := handlers.Inspect(logger.With(zap.String("file", path)), f, info.Size(), opts, verify)
	if err != nil {
		return err
	}
	resp.Filename = path

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err = fmt.Fprintln(w, report(resp))
	return err
}
