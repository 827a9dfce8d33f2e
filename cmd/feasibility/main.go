package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/feasibility-forecast/internal/config"
	"github.com/iwvelando/feasibility-forecast/internal/coordinator"
	"github.com/iwvelando/feasibility-forecast/internal/forecast"
	"github.com/iwvelando/feasibility-forecast/internal/logging"
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/export"
	"github.com/iwvelando/feasibility-forecast/pkg/output"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

type options struct {
	format     string
	outputFile string
}

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, xlsx")
	outputFileFlag := flag.String("output-file", "", "workbook path override for xlsx output")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	watch := flag.Bool("watch", false, "recalculate whenever the configuration file changes")
	flag.Parse()

	// Load the config file to get logging configuration
	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*watch {
		if err := run(ctx, logger, conf, resolve(conf, *outputFormatFlag, *outputFileFlag)); err != nil {
			logger.Fatal("failed to compute forecast",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		return
	}

	debouncer := coordinator.NewDebouncer(constants.DefaultDebounceMillis * time.Millisecond)
	defer debouncer.Stop()
	versions := coordinator.NewVersions()

	err = config.Watch(ctx, logger, *configLocation, func(changed *config.Configuration, loadErr error) {
		if loadErr != nil {
			logger.Error("failed to reload configuration",
				zap.String("op", "main"),
				zap.Error(loadErr),
			)
			return
		}
		version := versions.Next("")
		debouncer.Trigger(func() {
			if !versions.IsLatest("", version) {
				return
			}
			if err := run(ctx, logger, changed, resolve(changed, *outputFormatFlag, *outputFileFlag)); err != nil {
				logger.Error("failed to compute forecast",
					zap.String("op", "main"),
					zap.Uint64("version", version),
					zap.Error(err),
				)
			}
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("failed to watch configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

// resolve applies the command line overrides to the configured output.
func resolve(conf *config.Configuration, formatOverride, fileOverride string) options {
	opts := options{format: conf.Output.Format, outputFile: conf.Output.File}
	if formatOverride != "" {
		opts.format = formatOverride
	}
	if fileOverride != "" {
		opts.outputFile = fileOverride
	}
	if opts.format == "" {
		opts.format = constants.OutputFormatPretty
	}
	return opts
}

func run(ctx context.Context, logger *zap.Logger, conf *config.Configuration, opts options) error {
	if err := validation.ValidateOutputFormat(opts.format); err != nil {
		return err
	}
	if opts.format == constants.OutputFormatXLSX && opts.outputFile == "" {
		return errors.New("xlsx output needs an output file")
	}

	f, err := forecast.GetForecast(ctx, logger, *conf)
	if err != nil {
		return err
	}
	for _, warning := range f.Warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}
	for _, failure := range f.Failures {
		logger.Error("scenario could not be calculated",
			zap.String("op", "main"),
			zap.String("scenario", failure.Scenario),
			zap.String("error", failure.Error),
		)
	}

	switch opts.format {
	case constants.OutputFormatPretty:
		output.PrettyFormat(f.Results, f.Comparisons)
		output.BreakEvenFormat(f.BreakEven)
	case constants.OutputFormatCSV:
		output.CsvFormat(f.Results)
	case constants.OutputFormatXLSX:
		if err := export.WriteFile(opts.outputFile, f.Results, f.Comparisons); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("wrote workbook %s", opts.outputFile),
			zap.String("op", "main"),
		)
	}
	return nil
}
