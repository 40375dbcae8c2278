package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	envPrefix = "STUBRUNNER"
	appName   = "stubrunner"

	exitGeneric       = 1
	exitInvalidInput  = 2
	exitAccessDenied  = 3
	exitUnserviceable = 4
	exitFailed        = 5
)

type RootConfig struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
}

// Execute runs the command tree until it returns or the process receives
// SIGINT/SIGTERM, which cancels the command context and stops the stubs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Resolve, fetch and serve contract stubs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			logger := newLogger(os.Stderr, viper.GetString("log_format"), viper.GetString("log_level"))
			log.Logger = logger
			cmd.SetContext(logger.With().Str("command", cmd.Name()).Logger().WithContext(cmd.Context()))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: trace, debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", "console", "Log format: console or json")
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))

	cmd.AddCommand(newRunCommand(), newResolveCommand(), newPublishCommand())
	return cmd
}

// initConfig reads an explicit config file, or the first stubrunner.yaml
// found in the working directory, .stubrunner or the user config dir.
// A missing default file is not an error.
func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if configFile == "" {
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("." + appName)
		viper.AddConfigPath("$HOME/.config/" + appName)
		var notFound viper.ConfigFileNotFoundError
		if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse config file " + viper.ConfigFileUsed()).
				WithCause(err)
		}
		return nil
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read config file").
			WithCause(err)
	}
	return nil
}

// newLogger writes to out so stdout stays reserved for command output
// such as stub URLs.
func newLogger(out io.Writer, format string, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	if strings.EqualFold(format, "json") {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

var exitCodes = map[errbuilder.ErrCode]int{
	errbuilder.CodeInvalidArgument:    exitInvalidInput,
	errbuilder.CodeAlreadyExists:      exitInvalidInput,
	errbuilder.CodePermissionDenied:   exitAccessDenied,
	errbuilder.CodeFailedPrecondition: exitUnserviceable,
	errbuilder.CodeNotFound:           exitFailed,
	errbuilder.CodeInternal:           exitFailed,
}

func exitCodeForError(err error) int {
	code := errbuilder.CodeOf(err)
	// An unmatched trigger means the stubs run but cannot serve the request.
	if code == errbuilder.CodeNotFound && strings.HasPrefix(errorMessage(err), "no contract matched") {
		return exitUnserviceable
	}
	if exit, ok := exitCodes[code]; ok {
		return exit
	}
	return exitGeneric
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
