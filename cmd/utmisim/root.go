package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/pkg/config"
	"github.com/ardnew/utmisim/pkg/prof"
)

// Persistent option names.
const (
	ConfigOptionName      = "config"
	LogLevelOptionName    = "log-level"
	LogFormatOptionName   = "log-format"
	LogFileOptionName     = "log-file"
	CPUProfileOptionName  = "cpu-profile"
	HeapProfileOptionName = "heap-profile"
	StoreOptionName       = "store"
	SpeedOptionName       = "speed"
)

// options is the state shared by every subcommand once the root command's
// pre-run hook has loaded the configuration.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string
	profile    prof.Config

	cfg      config.Config
	closer   io.Closer
	profiler *prof.Profiler
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &options{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:           "utmisim",
		Short:         "Simulate USB packet exchanges over a UTMI transceiver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.release()
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, ConfigOptionName, "", "YAML configuration file")
	flags.StringVar(&opts.logLevel, LogLevelOptionName, "", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, LogFormatOptionName, "", "Log format: text or json")
	flags.StringVar(&opts.logFile, LogFileOptionName, "", "Write logs to a size-rotated file instead of stderr")
	flags.StringVar(&opts.profile.CPU, CPUProfileOptionName, "", "Write a CPU profile of the command")
	flags.StringVar(&opts.profile.Heap, HeapProfileOptionName, "", "Write a heap profile when the command ends")

	cmd.AddCommand(newCRC16Command())
	cmd.AddCommand(newCRC5Command())
	cmd.AddCommand(newDecodeCommand())
	cmd.AddCommand(newVectorsCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

// load reads the configuration file, if any, and applies command line
// overrides before configuring logging.
func (o *options) load(cmd *cobra.Command) error {
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	if o.logLevel != "" {
		o.cfg.Logs.Level = o.logLevel
	}
	if o.logFormat != "" {
		o.cfg.Logs.Format = o.logFormat
	}
	if o.logFile != "" {
		o.cfg.Logs.File = o.logFile
	}
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	closer, err := o.cfg.ApplyLogging(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	o.closer = closer
	if !o.profile.IsZero() {
		if o.profiler, err = prof.Start(o.profile); err != nil {
			return err
		}
	}
	pkg.LogDebug(pkg.ComponentCLI, "command started", "command", cmd.CommandPath())
	return nil
}

// release stops profiling and closes the log file.
func (o *options) release() error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
	}
	if o.closer != nil {
		if cerr := o.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
