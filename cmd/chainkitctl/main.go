// chainkitctl is the operator tool for the on-chain escrow core: spot
// verification of claimed payments, manual game registration, recovery
// payload generation, and prize custody checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wagerparty/chainkit/config"
	"github.com/wagerparty/chainkit/custody"
	"github.com/wagerparty/chainkit/escrow"
	"github.com/wagerparty/chainkit/identity"
	"github.com/wagerparty/chainkit/money"
	"github.com/wagerparty/chainkit/registrar"
	"github.com/wagerparty/chainkit/signer"
	"github.com/wagerparty/chainkit/verify"
)

const rpcTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	client *ethclient.Client
	log    *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}
	log, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, client: client, log: log}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chainkitctl",
		Short:         "Operator tool for the wager escrow chain core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVerifyTransferCmd(),
		newVerifyJoinCmd(),
		newCreateGameCmd(),
		newRecoveryArgsCmd(),
		newCheckCustodyCmd(),
	)
	return root
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newVerifyTransferCmd() *cobra.Command {
	var txHash, recipient, amount, currencySymbol string

	cmd := &cobra.Command{
		Use:   "verify-transfer",
		Short: "Check a claimed stable-token payment against chain state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			currency, err := money.CurrencyFromSymbol(currencySymbol)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()

			v := verify.New(a.cfg, a.client, a.log)
			result, err := v.VerifyTransfer(ctx, common.HexToHash(txHash),
				a.cfg.StableTokenAddress, common.HexToAddress(recipient), amount, currency)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&txHash, "tx", "", "transaction hash to verify")
	cmd.Flags().StringVar(&recipient, "recipient", "", "expected recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "expected human amount, e.g. 5.00")
	cmd.Flags().StringVar(&currencySymbol, "currency", "USDC", "currency symbol")
	_ = cmd.MarkFlagRequired("tx")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newVerifyJoinCmd() *cobra.Command {
	var txHash, resourceID, amount, currencySymbol string
	var payers []string

	cmd := &cobra.Command{
		Use:   "verify-join",
		Short: "Check a claimed joinGame transaction against chain state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			currency, err := money.CurrencyFromSymbol(currencySymbol)
			if err != nil {
				return err
			}
			expected, err := money.ToRawUnits(amount, currency)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()

			v := verify.New(a.cfg, a.client, a.log)
			result, err := v.VerifyJoin(ctx, common.HexToHash(txHash), resourceID,
				identity.NewAllowedPayerSet("operator", payers...), expected)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&txHash, "tx", "", "transaction hash to verify")
	cmd.Flags().StringVar(&resourceID, "resource", "", "expected game resource id")
	cmd.Flags().StringVar(&amount, "amount", "", "expected human amount")
	cmd.Flags().StringVar(&currencySymbol, "currency", "USDC", "currency symbol")
	cmd.Flags().StringSliceVar(&payers, "payer", nil, "allowed payer address (repeatable)")
	_ = cmd.MarkFlagRequired("tx")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCreateGameCmd() *cobra.Command {
	var resourceID, amount, currencySymbol string

	cmd := &cobra.Command{
		Use:   "create-game",
		Short: "Register a game on-chain (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			r, err := buildRegistrar(a)
			if err != nil {
				return err
			}

			// Registration blocks until mined; give it room.
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()

			result, err := r.RegisterGame(ctx, resourceID, currencySymbol, amount)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&resourceID, "resource", "", "game resource id")
	cmd.Flags().StringVar(&amount, "amount", "", "entry fee as a human amount")
	cmd.Flags().StringVar(&currencySymbol, "currency", "USDC", "currency symbol")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newRecoveryArgsCmd() *cobra.Command {
	var resourceID, amount, currencySymbol, verifyTx string

	cmd := &cobra.Command{
		Use:   "recovery-args",
		Short: "Emit raw createGame arguments for manual submission, or verify a manual tx",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			r, err := buildRegistrar(a)
			if err != nil {
				return err
			}

			if verifyTx != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
				defer cancel()
				check, err := r.VerifyRecoveryTx(ctx, a.client, common.HexToHash(verifyTx),
					resourceID, currencySymbol, amount)
				if err != nil {
					return err
				}
				return printJSON(check)
			}

			recovery, err := r.BuildRecoveryArgs(resourceID, currencySymbol, amount)
			if err != nil {
				return err
			}
			return printJSON(recovery)
		},
	}

	cmd.Flags().StringVar(&resourceID, "resource", "", "game resource id")
	cmd.Flags().StringVar(&amount, "amount", "", "entry fee as a human amount")
	cmd.Flags().StringVar(&currencySymbol, "currency", "USDC", "currency symbol")
	cmd.Flags().StringVar(&verifyTx, "verify-tx", "", "verify an operator-submitted tx instead of emitting args")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCheckCustodyCmd() *cobra.Command {
	var nftContract string
	var tokenIDs []int64

	cmd := &cobra.Command{
		Use:   "check-custody",
		Short: "Confirm prize NFTs are held by the payout wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()

			ids := make([]*big.Int, len(tokenIDs))
			for i, id := range tokenIDs {
				ids[i] = big.NewInt(id)
			}

			v := custody.New(a.cfg, a.client, a.log)
			result := v.OwnsAll(ctx, common.HexToAddress(nftContract), ids)
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&nftContract, "nft", "", "NFT contract address")
	cmd.Flags().Int64SliceVar(&tokenIDs, "token-id", nil, "token id (repeatable)")
	_ = cmd.MarkFlagRequired("nft")
	_ = cmd.MarkFlagRequired("token-id")
	return cmd
}

func buildRegistrar(a *app) (*registrar.Registrar, error) {
	s, err := signer.NewFromPrivateKey(a.cfg.SignerKey, a.cfg.ChainID, a.client)
	if err != nil {
		return nil, err
	}
	contract := escrow.NewContract(a.cfg.EscrowAddress, a.client)
	return registrar.New(a.cfg, s, contract, a.log)
}
