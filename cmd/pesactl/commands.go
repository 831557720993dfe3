package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/app"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

type builder func(ctx context.Context) (*app.App, error)

func newRootCmd(build builder, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pesactl",
		Short:         "Operate the mobile-money payment ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Overall deadline for the command")

	rootCmd.AddCommand(queryCmd(build))
	rootCmd.AddCommand(sweepCmd(build))
	rootCmd.AddCommand(reconcileOrphansCmd(build))

	return rootCmd
}

// withApp builds the application under the --timeout deadline and runs fn.
func withApp(cmd *cobra.Command, build builder, fn func(ctx context.Context, a *app.App) error) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func queryCmd(build builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [transaction-id]",
		Short: "Resolve a payment through a status query",
		Long: `Query the gateway for the result of a pending push payment.
Terminal transactions are answered from the ledger. Accepts pay_<uuid> or a bare uuid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTransactionID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				var result *service.StatusResult
				err := service.DefaultRetryPolicy().Do(ctx, func() error {
					var qerr error
					result, qerr = a.Status.Query(ctx, id)
					return qerr
				})
				if err != nil {
					return fmt.Errorf("status query failed: %w", err)
				}

				tx := result.Transaction
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":                 tx.ID,
					"state":              tx.State,
					"pending":            result.Pending,
					"result_code":        tx.ResultCode,
					"result_description": tx.ResultDescription,
					"receipt_number":     tx.ReceiptNumber,
				})
			})
		},
	}
	return cmd
}

func sweepCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Resolve or expire overdue pending transactions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				report, err := a.Sweeper.SweepOnce(ctx)
				if err != nil {
					return fmt.Errorf("sweep failed: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func reconcileOrphansCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-orphans",
		Short: "Match parked callbacks against the ledger once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				matched, dropped, err := a.Callbacks.ReconcileOrphans(ctx)
				if err != nil {
					return fmt.Errorf("orphan reconciliation failed: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{
					"matched": matched,
					"dropped": dropped,
				})
			})
		},
	}
}

func parseTransactionID(raw string) (uuid.UUID, error) {
	for _, prefix := range []string{"pay_", "dsb_"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid transaction id %q: %w", raw, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
