package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Paintersrp/skymood/internal/config"
	"github.com/Paintersrp/skymood/internal/preflight"
	"github.com/Paintersrp/skymood/internal/runtime"
	"github.com/Paintersrp/skymood/internal/runtime/process"
)

// Exit codes returned by Execute.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitLaunch     = 3
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{
		newRuntime: func() runtime.Runtime { return process.New() },
	}

	root := &cobra.Command{
		Use:   "skymood",
		Short: "Run the skymood frontend and API dev servers together",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setupLogger(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", config.DefaultFile, "Path to the project configuration file")
	root.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Output format: text or json")

	root.AddCommand(newDevCmd(ctx))
	root.AddCommand(newCheckCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint and exits with a status derived from the
// command result.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var validationErr *preflight.ValidationError
	var cfgErr *configError
	var launchErr *runtime.LaunchError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &cfgErr):
		return ExitValidation
	case errors.As(err, &launchErr):
		return ExitLaunch
	default:
		return ExitFailure
	}
}

// configError marks a configuration that could not be loaded or is invalid.
type configError struct {
	err error
}

func (e *configError) Error() string { return "config: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

type context struct {
	configPath string
	logLevel   string
	logFormat  string

	newRuntime func() runtime.Runtime
	log        *zap.SugaredLogger
}

// loadConfig reads the project configuration. The default file is optional;
// a path given with --config must exist.
func (c *context) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	required := false
	if flag := cmd.Flags().Lookup("config"); flag != nil && flag.Changed {
		required = true
	}
	cfg, err := config.Load(c.configPath, required)
	if err != nil {
		return nil, &configError{err: err}
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: err}
	}
	// Validate has already accepted the level.
	level, _ := zapcore.ParseLevel(cfg.Logging.Level)
	c.log = newLogger(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	return cfg, nil
}

func (c *context) setupLogger(w io.Writer) error {
	level := zapcore.InfoLevel
	if c.logLevel != "" {
		parsed, err := zapcore.ParseLevel(c.logLevel)
		if err != nil {
			return &configError{err: fmt.Errorf("--log-level: %w", err)}
		}
		level = parsed
	}
	switch c.logFormat {
	case "", "text", "json":
	default:
		return &configError{err: fmt.Errorf("--log-format must be text or json, got %q", c.logFormat)}
	}
	c.log = newLogger(w, level, c.logFormat)
	return nil
}

func (c *context) logger() *zap.SugaredLogger {
	if c.log == nil {
		return zap.NewNop().Sugar()
	}
	return c.log
}

func newLogger(w io.Writer, level zapcore.Level, format string) *zap.SugaredLogger {
	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Sugar()
}
