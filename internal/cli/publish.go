package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/app"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

type publishOptions struct {
	RepositoryRoot string
	Coordinate     string
	StubsDir       string
	Classifier     string
	Properties     map[string]string
}

func newPublishCommand() *cobra.Command {
	opts := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Push a stubs directory to a git contract repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RepositoryRoot, "repository-root", "", "Contract repository (git://...)")
	cmd.Flags().StringVar(&opts.Coordinate, "coordinate", "", "Coordinate of the stubs as group:artifact:version")
	cmd.Flags().StringVar(&opts.StubsDir, "stubs-dir", "", "Directory holding the stubs to publish")
	cmd.Flags().StringVar(&opts.Classifier, "classifier", types.DefaultClassifier, "Stubs classifier")
	cmd.Flags().StringToStringVar(&opts.Properties, "property", nil, "Git property as key=value (git.branch, git.username, ...)")

	_ = viper.BindPFlag("repository_root", cmd.Flags().Lookup("repository-root"))
	_ = viper.BindPFlag("coordinate", cmd.Flags().Lookup("coordinate"))
	_ = viper.BindPFlag("stubs_dir", cmd.Flags().Lookup("stubs-dir"))
	_ = viper.BindPFlag("classifier", cmd.Flags().Lookup("classifier"))
	_ = viper.BindPFlag("properties", cmd.Flags().Lookup("property"))
	return cmd
}

func runPublish(ctx context.Context, cmd *cobra.Command, opts publishOptions) error {
	options := types.DefaultStubRunnerOptions()
	options.RepositoryRoot = resolveString(cmd, opts.RepositoryRoot, "repository_root", "repository-root")
	options.StubsClassifier = resolveString(cmd, opts.Classifier, "classifier", "classifier")
	if properties := resolveStringMap(cmd, opts.Properties, "properties", "property"); properties != nil {
		options.Properties = properties
	}
	service := newAppService()
	result, err := service.Publish(ctx, app.PublishRequest{
		Options:    options,
		Coordinate: resolveString(cmd, opts.Coordinate, "coordinate", "coordinate"),
		StubsDir:   resolveString(cmd, opts.StubsDir, "stubs_dir", "stubs-dir"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("published: %s\n", result.Coordinate)
	return nil
}
