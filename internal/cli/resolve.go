package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/app"
)

type resolveOptions struct {
	stubRunnerFlags
	OutputDir string
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve and download stubs without starting them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd, &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Directory receiving the resolved stubs")
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, opts *resolveOptions) error {
	service := opts.service(cmd)
	result, err := service.Resolve(ctx, app.ResolveRequest{
		Options:   opts.options(cmd),
		Stubs:     opts.stubs(cmd),
		OutputDir: resolveString(cmd, opts.OutputDir, "output", "output"),
	})
	if err != nil {
		return err
	}
	for _, bundle := range result.Bundles {
		fmt.Printf("resolved: %s -> %s\n", bundle.Coordinate, bundle.LocalPath)
	}
	for _, missing := range result.Missing {
		fmt.Printf("missing: %s\n", missing)
	}
	for _, failed := range result.Failed {
		fmt.Printf("failed: %s: %v\n", failed.Coordinate, failed.Err)
	}
	return nil
}
