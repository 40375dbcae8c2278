package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/app"
)

const triggerAll = "all"

type runOptions struct {
	stubRunnerFlags
	Triggers []string
	Detach   bool
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve stubs and serve them until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStubs(cmd.Context(), cmd, &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringSliceVar(&opts.Triggers, "trigger", nil, "Contract labels to trigger after start (\"all\" for every label)")
	cmd.Flags().BoolVar(&opts.Detach, "exit-after-start", false, "Stop the stubs right after they started")
	_ = viper.BindPFlag("triggers", cmd.Flags().Lookup("trigger"))
	return cmd
}

func runStubs(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	service := opts.service(cmd)
	session, err := service.Run(ctx, app.RunRequest{
		Options: opts.options(cmd),
		Stubs:   opts.stubs(cmd),
	})
	if err != nil {
		return err
	}
	defer session.Close(context.WithoutCancel(ctx))

	for _, entry := range session.Running.Entries() {
		if entry.Port < 0 {
			fmt.Printf("%s: messaging only\n", entry.Coordinate)
			continue
		}
		fmt.Printf("%s: http://localhost:%d\n", entry.Coordinate, entry.Port)
	}
	for _, missing := range session.Missing {
		fmt.Printf("%s: no stubs found\n", missing)
	}
	for _, failed := range session.Failed {
		fmt.Printf("%s: failed: %v\n", failed.Coordinate, failed.Err)
	}
	for _, label := range resolveStrings(cmd, opts.Triggers, "triggers", "trigger") {
		if err := fireTrigger(ctx, session.Batch, label); err != nil {
			return err
		}
	}
	if opts.Detach {
		return nil
	}
	log.Ctx(ctx).Info().Int("stubs", session.Running.Len()).Msg("stubs running, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func fireTrigger(ctx context.Context, batch *app.BatchStubRunner, label string) error {
	if strings.EqualFold(label, triggerAll) {
		return batch.TriggerAll(ctx)
	}
	if notation, name, ok := cutLast(label, ":"); ok {
		return batch.TriggerByNotation(ctx, notation, name)
	}
	return batch.Trigger(ctx, label)
}

// cutLast splits value around the last separator.
func cutLast(value string, sep string) (string, string, bool) {
	idx := strings.LastIndex(value, sep)
	if idx <= 0 {
		return "", value, false
	}
	return value[:idx], value[idx+len(sep):], true
}
