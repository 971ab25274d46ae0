package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/cache"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/compound"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/config"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/datasource"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/fhir/conceptmap"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/output"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/processor"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/transformer"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/validate"
	"github.com/SanteonNL/cda2fhir/util"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cda2fhir",
		Short:         "Transform a CDA staging database into FHIR ndjson",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func transformCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform the staging database into one ndjson file per resource type",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTransform(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("env-file", ".env", "Path to an optional .env file")
	flags.String("db-driver", "sqlite", "Staging database driver: sqlite, postgres or pgx")
	flags.String("db-url", "", "Staging database DSN")
	flags.StringP("output", "o", "output", "Output directory")
	flags.Int("batch-size", processor.DefaultBatchSize, "Source rows per batch")
	flags.StringSlice("families", nil, "Resource families to run (default all)")
	flags.Bool("update-existing", false, "Replace resources whose id already exists")
	flags.StringSlice("sample", nil, "Per family sample limits, e.g. patient=100,mutation=1000")
	flags.Int("compound-limit", 10, "Maximum compound rows per therapeutic agent")
	flags.String("log-level", "info", "Log level")
	flags.String("s3-bucket", "", "Upload the output to this bucket after a successful run")
	flags.String("s3-region", "", "S3 region (default us-east-1)")
	flags.String("s3-endpoint", "", "S3-compatible endpoint, e.g. MinIO")
	flags.String("s3-prefix", "", "Object key prefix")
	flags.Bool("s3-path-style", false, "Use path-style S3 addressing")

	for key, flag := range map[string]string{
		config.KeyDBDriver:       "db-driver",
		config.KeyDBURL:          "db-url",
		config.KeyOutput:         "output",
		config.KeyBatchSize:      "batch-size",
		config.KeyFamilies:       "families",
		config.KeyUpdateExisting: "update-existing",
		config.KeySample:         "sample",
		config.KeyCompoundLimit:  "compound-limit",
		config.KeyLogLevel:       "log-level",
		config.KeyS3Bucket:       "s3-bucket",
		config.KeyS3Region:       "s3-region",
		config.KeyS3Endpoint:     "s3-endpoint",
		config.KeyS3Prefix:       "s3-prefix",
		config.KeyS3PathStyle:    "s3-path-style",
	} {
		bindFlag(v, key, cmd, flag)
	}
	return cmd
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func runTransform(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	outputDir, err := util.GetAbsolutePath(cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	om, err := output.NewOutputManager(outputDir, os.Stdout, cfg.Level())
	if err != nil {
		return err
	}
	defer om.Close()
	log := om.GetLogger()
	log.Info().Str("output", om.GetBaseDir()).Str("driver", cfg.DBDriver).Msg("Starting cda2fhir transform")

	options, err := processorOptions(cfg)
	if err != nil {
		return err
	}

	db, err := datasource.Open(ctx, cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ds, err := datasource.NewDataSourceService(db, log)
	if err != nil {
		return err
	}

	repo := conceptmap.NewEmbeddedConceptMapRepository(log)
	if err := repo.LoadConceptMaps(); err != nil {
		return fmt.Errorf("failed to load concept maps: %w", err)
	}
	tr := transformer.NewTransformer(conceptmap.NewConceptMapService(repo, log), log)

	compounds, err := compound.NewRepository(db, log)
	if err != nil {
		return err
	}

	svc, err := processor.NewProcessorService(processor.ProcessorConfig{
		Log:           log,
		Store:         ds,
		Transformer:   tr,
		Compounds:     compounds,
		OutputManager: om,
		CacheConfig:   &cache.CacheConfig{Enabled: cfg.CacheEnabled, MaxSize: cfg.CacheMaxSize},
		Options:       options,
	})
	if err != nil {
		return err
	}

	report, runErr := svc.Run(ctx)
	for _, fr := range report.Families {
		event := log.Info()
		if fr.Err != nil {
			event = log.Error().Err(fr.Err)
		}
		event.Str("family", string(fr.Family)).
			Str("state", fr.State.String()).
			Int("records", fr.Records).
			Int("skipped", fr.Skipped).
			Interface("emitted", fr.Emitted).
			Msg("Family summary")
	}

	if err := svc.Metrics().WriteToTextfile(om.GetOutputPath(output.MetricsFile)); err != nil {
		log.Error().Err(err).Msg("Failed to write metrics")
	}

	if runErr != nil {
		return fmt.Errorf("transform failed: %w", runErr)
	}

	if cfg.Publish() {
		publisher, err := output.NewS3Publisher(ctx, output.PublisherConfig{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		}, log)
		if err != nil {
			return err
		}
		if _, err := publisher.Publish(ctx, om.GetBaseDir()); err != nil {
			return err
		}
	}

	log.Info().Dur("duration", time.Since(startTime)).Msg("Transform finished")
	return nil
}

func processorOptions(cfg *config.Config) (processor.Options, error) {
	families, err := processor.ParseFamilies(cfg.Families)
	if err != nil {
		return processor.Options{}, err
	}
	samples, err := cfg.SampleLimits()
	if err != nil {
		return processor.Options{}, err
	}
	limits := make(map[processor.Family]int, len(samples))
	for name, n := range samples {
		family, err := processor.ParseFamily(name)
		if err != nil {
			return processor.Options{}, err
		}
		limits[family] = n
	}
	return processor.Options{
		BatchSize:      cfg.BatchSize,
		Families:       families,
		UpdateExisting: cfg.UpdateExisting,
		SampleLimits:   limits,
		CompoundLimit:  cfg.CompoundLimit,
	}, nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check an output directory for invalid, duplicate or dangling resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).
				With().Timestamp().Logger()

			report, err := validate.NewValidateService(log).ValidateDirectory(args[0])
			if err != nil {
				return err
			}
			for _, issue := range report.Issues {
				log.Error().
					Str("file", issue.File).
					Int("line", issue.Line).
					Int64("offset", issue.Offset).
					Str("code", string(issue.Code)).
					Str("excerpt", issue.Excerpt).
					Msg(issue.Details)
			}
			if !report.OK() {
				return fmt.Errorf("%d validation issues in %s", len(report.Issues), args[0])
			}
			return nil
		},
	}
}
