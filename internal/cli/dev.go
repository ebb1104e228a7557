package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Paintersrp/skymood/internal/cliutil"
	"github.com/Paintersrp/skymood/internal/config"
	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/logmux"
	"github.com/Paintersrp/skymood/internal/metrics"
	"github.com/Paintersrp/skymood/internal/preflight"
	"github.com/Paintersrp/skymood/internal/task"
)

const eventBuffer = 256

type devOptions struct {
	frontendPort int
	backendPort  int
	root         string
	host         string
	gracePeriod  time.Duration
	pollInterval time.Duration
	logDir       string
	metricsAddr  string
}

func bindDevFlags(fs *pflag.FlagSet, opts *devOptions) {
	fs.IntVar(&opts.frontendPort, "frontend-port", config.DefaultFrontendPort, "Port for the Vite dev server")
	fs.IntVar(&opts.backendPort, "backend-port", config.DefaultBackendPort, "Port for the FastAPI server")
	fs.StringVar(&opts.root, "root", "", "Project root containing the frontend and API directories (backend envFile is still read from the config root)")
	fs.StringVar(&opts.host, "host", config.DefaultHost, "Interface both dev servers bind to")
	fs.DurationVar(&opts.gracePeriod, "grace-period", config.DefaultGracePeriod, "Time allowed for tasks to stop before they are killed")
	fs.DurationVar(&opts.pollInterval, "poll-interval", config.DefaultPollInterval, "How often tasks are checked for exit")
	fs.StringVar(&opts.logDir, "log-dir", "", "Directory to persist task output, one subdirectory per session")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// apply overrides configuration values with the flags that were set
// explicitly on the command line.
func (o *devOptions) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("root") {
		root, err := filepath.Abs(o.root)
		if err != nil {
			return fmt.Errorf("--root: %w", err)
		}
		cfg.Root = root
	}
	if fs.Changed("frontend-port") {
		cfg.Frontend.Port = o.frontendPort
	}
	if fs.Changed("backend-port") {
		cfg.Backend.Port = o.backendPort
	}
	if fs.Changed("host") {
		cfg.Host = o.host
	}
	if fs.Changed("grace-period") {
		cfg.Supervisor.GracePeriod = config.Duration{Duration: o.gracePeriod}
	}
	if fs.Changed("poll-interval") {
		cfg.Supervisor.PollInterval = config.Duration{Duration: o.pollInterval}
	}
	if fs.Changed("log-dir") {
		cfg.Logging.Directory = o.logDir
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	return cfg.Validate()
}

func newDevCmd(ctx *context) *cobra.Command {
	opts := &devOptions{}
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the frontend and backend dev servers until one exits or you interrupt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd, ctx, opts)
		},
	}
	bindDevFlags(cmd.Flags(), opts)
	return cmd
}

// resolveDev loads the configuration, applies flag overrides and builds the
// dev task set.
func resolveDev(cmd *cobra.Command, ctx *context, opts *devOptions) (*config.Config, task.Set, error) {
	cfg, err := ctx.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := opts.apply(cmd.Flags(), cfg); err != nil {
		return nil, nil, &configError{err: err}
	}
	tasks, err := task.DevTasks(cfg)
	if err != nil {
		return nil, nil, &configError{err: err}
	}
	return cfg, tasks, nil
}

func runDev(cmd *cobra.Command, ctx *context, opts *devOptions) error {
	cfg, tasks, err := resolveDev(cmd, ctx, opts)
	if err != nil {
		return err
	}
	log := ctx.logger()

	if err := preflight.ForDev(cfg, tasks).Run(); err != nil {
		return err
	}

	for _, name := range tasks.Names() {
		metrics.ResetTask(name)
	}
	if cfg.Metrics.Addr != "" {
		stop, err := metrics.Serve(cfg.Metrics.Addr, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	var sinkOpts []logmux.SinkOption
	if cfg.Logging.Directory != "" {
		sinkOpts = append(sinkOpts, logmux.WithDirectory(cfg.Logging.Directory))
	}
	mux, err := logmux.New(eventBuffer, sinkOpts...)
	if err != nil {
		return err
	}
	if sink := mux.Sink(); sink != nil {
		log.Infow("persisting task output", "dir", sink.Dir(), "session", sink.Session())
	}

	events := make(chan engine.Event, eventBuffer)
	mux.Add(events)
	printer := cliutil.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Logging.Format, tasks.Names())
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printer.Drain(mux.Output())
	}()

	sup := engine.New(ctx.newRuntime(), tasks,
		engine.WithPollInterval(cfg.Supervisor.PollInterval.Duration),
		engine.WithGracePeriod(cfg.Supervisor.GracePeriod.Duration),
		engine.WithEvents(events),
		engine.WithLogger(log),
	)
	res, runErr := sup.Run(cmd.Context())

	close(events)
	if err := mux.Close(); err != nil {
		log.Warnw("task output persistence failed", "error", err)
	}
	<-printed

	if res != nil {
		log.Debugw("session finished", "trigger", res.Trigger.String(), "shutdown", res.Shutdown)
	}
	return runErr
}
