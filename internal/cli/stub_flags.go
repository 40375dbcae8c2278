package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/app"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

// stubRunnerFlags are shared by every command that resolves stubs.
type stubRunnerFlags struct {
	Stubs                []string
	RepositoryRoot       string
	StubsMode            string
	MinPort              int
	MaxPort              int
	Classifier           string
	FailOnNoStubs        bool
	DeleteStubsAfterTest bool
	StubsPerConsumer     bool
	ConsumerName         string
	MappingsOutput       string
	Username             string
	Password             string
	ClasspathRoots       []string
	Properties           map[string]string
	HTTPTimeoutSec       int
	HTTPRetries          int
	HTTPRetryDelayMs     int
}

func (f *stubRunnerFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&f.Stubs, "stubs", nil, "Stub ids as group:artifact[:version[:classifier[:port]]]")
	flags.StringVar(&f.RepositoryRoot, "repository-root", "", "Repository root (http(s)://, file://, git://, s3://, stubs://)")
	flags.StringVar(&f.StubsMode, "stubs-mode", "", "Stubs mode: classpath, local or remote")
	flags.IntVar(&f.MinPort, "min-port", types.DefaultMinPort, "Lowest port for stub servers")
	flags.IntVar(&f.MaxPort, "max-port", types.DefaultMaxPort, "Highest port for stub servers")
	flags.StringVar(&f.Classifier, "classifier", types.DefaultClassifier, "Default stubs classifier")
	flags.BoolVar(&f.FailOnNoStubs, "fail-on-no-stubs", false, "Fail when a coordinate has no stubs")
	flags.BoolVar(&f.DeleteStubsAfterTest, "delete-stubs-after-test", true, "Delete temporary stub files on shutdown")
	flags.BoolVar(&f.StubsPerConsumer, "stubs-per-consumer", false, "Only use stubs of the consumer name")
	flags.StringVar(&f.ConsumerName, "consumer-name", "", "Consumer name for stubs per consumer")
	flags.StringVar(&f.MappingsOutput, "mappings-output", "", "Folder receiving the registered mappings")
	flags.StringVar(&f.Username, "username", "", "Repository username")
	flags.StringVar(&f.Password, "password", "", "Repository password")
	flags.StringSliceVar(&f.ClasspathRoots, "classpath-root", nil, "Directories searched in classpath mode")
	flags.StringToStringVar(&f.Properties, "property", nil, "Backend property as key=value (git.branch, s3.endpoint, ...)")
	flags.IntVar(&f.HTTPTimeoutSec, "http-timeout", 60, "Repository HTTP timeout in seconds")
	flags.IntVar(&f.HTTPRetries, "http-retries", 3, "Repository HTTP retries")
	flags.IntVar(&f.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "Base delay between repository HTTP retries")

	_ = viper.BindPFlag("stubs", flags.Lookup("stubs"))
	_ = viper.BindPFlag("repository_root", flags.Lookup("repository-root"))
	_ = viper.BindPFlag("stubs_mode", flags.Lookup("stubs-mode"))
	_ = viper.BindPFlag("min_port", flags.Lookup("min-port"))
	_ = viper.BindPFlag("max_port", flags.Lookup("max-port"))
	_ = viper.BindPFlag("classifier", flags.Lookup("classifier"))
	_ = viper.BindPFlag("fail_on_no_stubs", flags.Lookup("fail-on-no-stubs"))
	_ = viper.BindPFlag("delete_stubs_after_test", flags.Lookup("delete-stubs-after-test"))
	_ = viper.BindPFlag("stubs_per_consumer", flags.Lookup("stubs-per-consumer"))
	_ = viper.BindPFlag("consumer_name", flags.Lookup("consumer-name"))
	_ = viper.BindPFlag("mappings_output", flags.Lookup("mappings-output"))
	_ = viper.BindPFlag("username", flags.Lookup("username"))
	_ = viper.BindPFlag("password", flags.Lookup("password"))
	_ = viper.BindPFlag("classpath_roots", flags.Lookup("classpath-root"))
	_ = viper.BindPFlag("properties", flags.Lookup("property"))
	_ = viper.BindPFlag("http_timeout_sec", flags.Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", flags.Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", flags.Lookup("http-retry-delay-ms"))
}

func (f *stubRunnerFlags) stubs(cmd *cobra.Command) []string {
	return resolveStrings(cmd, f.Stubs, "stubs", "stubs")
}

func (f *stubRunnerFlags) options(cmd *cobra.Command) types.StubRunnerOptions {
	options := types.DefaultStubRunnerOptions()
	options.RepositoryRoot = resolveString(cmd, f.RepositoryRoot, "repository_root", "repository-root")
	options.StubsMode = types.StubsMode(resolveString(cmd, f.StubsMode, "stubs_mode", "stubs-mode"))
	options.MinPort = resolveInt(cmd, f.MinPort, "min_port", "min-port")
	options.MaxPort = resolveInt(cmd, f.MaxPort, "max_port", "max-port")
	options.StubsClassifier = resolveString(cmd, f.Classifier, "classifier", "classifier")
	options.FailOnNoStubs = resolveBool(cmd, f.FailOnNoStubs, "fail_on_no_stubs", "fail-on-no-stubs")
	options.DeleteStubsAfterTest = resolveBool(cmd, f.DeleteStubsAfterTest, "delete_stubs_after_test", "delete-stubs-after-test")
	options.StubsPerConsumer = resolveBool(cmd, f.StubsPerConsumer, "stubs_per_consumer", "stubs-per-consumer")
	options.ConsumerName = resolveString(cmd, f.ConsumerName, "consumer_name", "consumer-name")
	options.MappingsOutputFolder = resolveString(cmd, f.MappingsOutput, "mappings_output", "mappings-output")
	options.Username = resolveString(cmd, f.Username, "username", "username")
	options.Password = resolveString(cmd, f.Password, "password", "password")
	options.ClasspathRoots = resolveStrings(cmd, f.ClasspathRoots, "classpath_roots", "classpath-root")
	if properties := resolveStringMap(cmd, f.Properties, "properties", "property"); properties != nil {
		options.Properties = properties
	}
	return options
}

func (f *stubRunnerFlags) service(cmd *cobra.Command) app.Service {
	service := newAppService()
	service.HTTPTimeoutSec = resolveInt(cmd, f.HTTPTimeoutSec, "http_timeout_sec", "http-timeout")
	service.HTTPRetries = resolveInt(cmd, f.HTTPRetries, "http_retries", "http-retries")
	service.HTTPRetryDelayMs = resolveInt(cmd, f.HTTPRetryDelayMs, "http_retry_delay_ms", "http-retry-delay-ms")
	return service
}
