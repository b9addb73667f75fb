package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"glidemoney/internal/amqp"
	"glidemoney/internal/services"
)

var requestForce bool

// requestCmd asks the plan worker to recompute a user's plan.
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Queue a plan recompute for the worker",
	Long: `Publish a recompute request on AMQP_URL. The worker skips requests that
are not due for the user's cadence unless --force is set.

Example:
  glidemoney request --user alex --force`,
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().BoolVar(&requestForce, "force", false, "Recompute even when the user's cadence says it is not due")
}

func runRequest(cmd *cobra.Command, args []string) error {
	a := current
	if a.user == "" {
		return errors.New("missing user: --user is required")
	}
	if a.cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}

	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	msg := amqp.NewRecomputeMessage(a.user, services.TriggerRequest, requestForce)
	if err := client.PublishRecompute(cmd.Context(), msg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued recompute %s for %s\n", msg.ID, a.user)
	return nil
}
