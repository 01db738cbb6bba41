package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"twister-backend/internal/services"
	"twister-backend/internal/types"
)

var depositFlags struct {
	secretFlags
	Amount string
}

var withdrawFlags struct {
	secretFlags
	OldAmount string
	Amount    string
	Receiver  string
	Relayer   string
}

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Prove and submit a deposit of a new note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, func(ctx context.Context, c *services.WithdrawalCoordinator) (*services.Result, error) {
			return c.Deposit(ctx, types.DepositRequest{
				SecretSource: depositFlags.source(),
				Amount:       depositFlags.Amount,
			})
		})
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Spend a note, pay out part of it and re-deposit the remainder",
	Long: "Spends the note (secret, old-amount), pays amount to the receiver and records a new\n" +
		"note (secret, old-amount - amount) under the same secret.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, func(ctx context.Context, c *services.WithdrawalCoordinator) (*services.Result, error) {
			return c.Withdraw(ctx, types.WithdrawRequest{
				SecretSource: withdrawFlags.source(),
				OldAmount:    withdrawFlags.OldAmount,
				Amount:       withdrawFlags.Amount,
				Receiver:     withdrawFlags.Receiver,
				Relayer:      withdrawFlags.Relayer,
			})
		})
	},
}

func runOperation(cmd *cobra.Command, run func(context.Context, *services.WithdrawalCoordinator) (*services.Result, error)) error {
	ctx := cmd.Context()
	container, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer container.Stop()

	result, err := run(ctx, container.Coordinator)
	if err != nil {
		return fmt.Errorf("%s: %w", types.ErrorCode(err), err)
	}
	if result.Skipped {
		return errors.New("another operation is in flight")
	}
	return printJSON(cmd, result)
}

func init() {
	depositFlags.bind(depositCmd)
	depositCmd.Flags().StringVarP(&depositFlags.Amount, "amount", "a", "", "amount in ether")
	_ = depositCmd.MarkFlagRequired("amount")

	withdrawFlags.bind(withdrawCmd)
	withdrawCmd.Flags().StringVar(&withdrawFlags.OldAmount, "old-amount", "", "amount of the note being spent, in ether")
	withdrawCmd.Flags().StringVarP(&withdrawFlags.Amount, "amount", "a", "", "amount to pay out, in ether")
	withdrawCmd.Flags().StringVarP(&withdrawFlags.Receiver, "receiver", "r", "", "payout address")
	withdrawCmd.Flags().StringVar(&withdrawFlags.Relayer, "relayer", "", "relayer address (default zero address)")
	_ = withdrawCmd.MarkFlagRequired("old-amount")
	_ = withdrawCmd.MarkFlagRequired("amount")
	_ = withdrawCmd.MarkFlagRequired("receiver")

	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
}
