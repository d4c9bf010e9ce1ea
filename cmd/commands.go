package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/moratsam/clbin/cache"
	"github.com/moratsam/clbin/compute"
	"github.com/moratsam/clbin/compute/opencl"
	"github.com/moratsam/clbin/config"
	"github.com/moratsam/clbin/logger"
	"github.com/moratsam/clbin/metrics"
	"github.com/moratsam/clbin/program"
)

var (
	v        = viper.New()
	fs       = afero.NewOsFs()
	cfg_file string
	format   string

	cfg *config.Config
	log *zap.Logger
	m   *metrics.Metrics

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	newRuntime = func(log *zap.Logger) compute.Runtime { return opencl.New(log) }
	describe   = opencl.Describe

	iit_once sync.Once

	root_cmd = &cobra.Command{
		Use:   "clbin [platform_id-device_id[,...]]",
		Short: "Select OpenCL devices and build a kernel, reusing cached binaries.",
		Long: `Without arguments clbin lists every platform and device.

With a selector such as "0-0,0-1" (platform 0 devices 0 and 1; pairs separated
by ',', ';' or ' ') it creates a context over those devices and builds the
kernel source. The compiled binaries are cached next to the source, in a file
named after the selector digits, and reused by later runs.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runRoot,
	}

	cmd_info = &cobra.Command{
		Use:   "info",
		Short: "Print verbose properties of every platform and device",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}

	cmd_warm = &cobra.Command{
		Use:   "warm selector...",
		Short: "Build the binary cache of several selectors",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWarm,
	}

	cmd_inspect = &cobra.Command{
		Use:   "inspect cache-file",
		Short: "Print the entries of a binary cache file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
)

// reportedError marks an error whose message already reached the user.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Execute runs the command line and returns the process exit code. ctx
// cancels a running warm-up.
func Execute(ctx context.Context) int {
	iit_once.Do(iit)
	err := root_cmd.ExecuteContext(ctx)

	if m != nil && cfg != nil && cfg.MetricsFile != "" {
		if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil && log != nil {
			log.Warn("could not write metrics", zap.String("file", cfg.MetricsFile), zap.Error(werr))
		}
	}
	if log != nil {
		_ = log.Sync()
	}

	if err != nil {
		var reported *reportedError
		if !xerrors.As(err, &reported) {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
		}
		return -1
	}
	return 0
}

func iit() {
	root_cmd.AddCommand(cmd_info, cmd_warm, cmd_inspect)

	// Cmd Root
	root_cmd.PersistentFlags().StringVar(&cfg_file, "config", "", "Config file (yaml, toml or json)")
	bindFlags(root_cmd.PersistentFlags())

	// Cmd Info
	cmd_info.Flags().StringVarP(&format, "output", "o", "text", "Output format ({\"text\",\"yaml\"})")
}

func bindFlags(flags *pflag.FlagSet) {
	config.SetDefaults(v)
	flags.String(config.KeySource, config.DefaultSource, "Kernel source file")
	flags.String(config.KeyCacheDir, "", "Directory for binary caches (default: next to the source)")
	flags.String(config.KeyBuildOptions, "", "Options passed to the OpenCL compiler")
	flags.String(config.KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(config.KeyMetricsFile, "", "Write Prometheus metrics to this textfile")
	for _, key := range []string{config.KeySource, config.KeyCacheDir, config.KeyBuildOptions, config.KeyLogLevel, config.KeyMetricsFile} {
		check(v.BindPFlag(key, flags.Lookup(key)))
	}
}

func setup(_ *cobra.Command, _ []string) error {
	if cfg_file != "" {
		v.SetConfigFile(cfg_file)
	}
	var err error
	if cfg, err = config.Load(v); err != nil {
		return err
	}
	if log, err = logger.New(cfg.LogLevel); err != nil {
		return err
	}
	m = metrics.New()
	return nil
}

func newSession() *program.Session {
	loader := program.NewLoader(fs, log, m, stderr, cfg.BuildOptions)
	return program.NewSession(newRuntime(log), loader, cfg.Source, cfg.CacheDir, log)
}

func runRoot(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(stdout, "Use: %s [platform_id-device_id]\n", os.Args[0])
		platforms, err := newRuntime(log).Platforms()
		if err != nil {
			return err
		}
		return compute.WritePlatforms(stdout, platforms)
	}

	s := newSession()
	target, err := s.Open(args[0])
	if err != nil {
		log.Error("open selection", zap.String("selector", args[0]), zap.Error(err))
		fmt.Fprintln(stderr, "ERROR: Context can not be created")
		return &reportedError{err}
	}
	defer target.Close()

	if err := s.Load(target); err != nil {
		log.Error("load program", zap.String("source", cfg.Source), zap.Error(err))
		fmt.Fprintln(stderr, "ERROR: Program can not be loaded")
		return &reportedError{err}
	}

	fmt.Fprintf(stdout, "%s: program from %s (%s)\n", target.Selector, target.Origin, target.CachePath)
	return nil
}

func runInfo(_ *cobra.Command, _ []string) error {
	platforms, err := describe()
	if err != nil {
		return err
	}
	switch format {
	case "text":
		return compute.WriteInfoText(stdout, platforms)
	case "yaml":
		return compute.WriteInfoYAML(stdout, platforms)
	default:
		return xerrors.Errorf("unknown output format %q", format)
	}
}

func runWarm(cmd *cobra.Command, args []string) error {
	reports, err := newSession().Warm(cmd.Context(), args)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			fmt.Fprintf(stdout, "%s\tFAIL\t%v\n", r.Arg, r.Err)
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.Arg, r.Origin, r.CachePath)
	}
	if failed > 0 {
		return &reportedError{xerrors.Errorf("%d of %d selectors failed", failed, len(reports))}
	}
	return nil
}

func runInspect(_ *cobra.Command, args []string) error {
	binaries, err := cache.NewStore(fs).Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d binaries\n", args[0], len(binaries))
	for i, b := range binaries {
		fmt.Fprintf(stdout, "\t#%d: %d bytes\n", i, len(b))
	}
	return nil
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
