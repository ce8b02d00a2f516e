package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/receipt"
	"github.com/cloudx-io/assetauction/statefile"
)

func parseHash(kind, s string) (core.Hash, error) {
	h, err := core.ParseHash(s)
	if err != nil {
		return core.Hash{}, fmt.Errorf("%s id %q: %w", kind, s, err)
	}
	return h, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

func newAssetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Create and inspect assets",
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an asset owned by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeCreateAsset, Name: args[0]})
		},
	}

	get := &cobra.Command{
		Use:   "get ASSET_ID",
		Short: "Show an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHash("asset", args[0])
			if err != nil {
				return err
			}
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeGetAsset, AssetID: id})
		},
	}

	var owner string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the assets held by an owner (default: the caller)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeListAssets, Owner: core.AccountID(owner)})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "Owner to list")

	cmd.AddCommand(create, get, list)
	return cmd
}

func newAuctionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auction",
		Short: "Start, cancel, close and inspect auctions",
	}

	var (
		endAt     string
		duration  time.Duration
		basePrice string
	)
	start := &cobra.Command{
		Use:   "start ASSET_ID",
		Short: "Auction an asset owned by the caller",
		Long: `Start an auction on an asset the caller owns.

The end time is either absolute (--end) or relative to the current clock
(--duration, the default being 24h).

Examples:
  auctionctl --as alice auction start 6f1c... --base-price 100
  auctionctl --as alice auction start 6f1c... --end 2026-12-01T00:00:00Z --base-price 12.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := parseHash("asset", args[0])
			if err != nil {
				return err
			}
			price, err := parseAmount(basePrice)
			if err != nil {
				return err
			}
			end := a.clock.Now().Add(duration)
			if endAt != "" {
				if end, err = time.Parse(time.RFC3339, endAt); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			return a.do(cmd, enclaveapi.Request{
				Type:      enclaveapi.TypeStartAuction,
				AssetID:   assetID,
				EndTime:   end,
				BasePrice: price,
			})
		},
	}
	start.Flags().StringVar(&endAt, "end", "", "Absolute end time (RFC 3339)")
	start.Flags().DurationVar(&duration, "duration", 24*time.Hour, "Auction length from now")
	start.Flags().StringVar(&basePrice, "base-price", "", "Minimum price")
	_ = start.MarkFlagRequired("base-price")
	start.MarkFlagsMutuallyExclusive("end", "duration")

	byID := func(use, short, requestType string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " AUCTION_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseHash("auction", args[0])
				if err != nil {
					return err
				}
				return a.do(cmd, enclaveapi.Request{Type: requestType, AuctionID: id})
			},
		}
	}

	cmd.AddCommand(
		start,
		byID("cancel", "Cancel an auction that has no bids", enclaveapi.TypeCancelAuction),
		byID("close", "Settle an auction whose end time has passed", enclaveapi.TypeCloseAuction),
		byID("refresh", "Publish the current leaderboard if the display period has elapsed", enclaveapi.TypeRefreshDisplay),
		byID("get", "Show an auction with its leaderboard", enclaveapi.TypeGetAuction),
	)
	return cmd
}

func newBidCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bid",
		Short: "Place and inspect bids",
	}

	place := &cobra.Command{
		Use:   "place AUCTION_ID PRICE",
		Short: "Place or raise the caller's bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHash("auction", args[0])
			if err != nil {
				return err
			}
			price, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeBid, AuctionID: id, Price: price})
		},
	}

	var (
		bidID   string
		account string
	)
	get := &cobra.Command{
		Use:   "get [AUCTION_ID]",
		Short: "Show a bid by id, or an account's bid on an auction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := enclaveapi.Request{Type: enclaveapi.TypeGetBid, Account: core.AccountID(account)}
			switch {
			case bidID != "":
				id, err := parseHash("bid", bidID)
				if err != nil {
					return err
				}
				req.BidID = id
			case len(args) == 1:
				id, err := parseHash("auction", args[0])
				if err != nil {
					return err
				}
				req.AuctionID = id
			default:
				return fmt.Errorf("either --id or AUCTION_ID is required")
			}
			return a.do(cmd, req)
		},
	}
	get.Flags().StringVar(&bidID, "id", "", "Bid id")
	get.Flags().StringVar(&account, "account", "", "Bidder (default: the caller)")

	cmd.AddCommand(place, get)
	return cmd
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Fund accounts and show balances",
	}

	var account string
	deposit := &cobra.Command{
		Use:   "deposit AMOUNT",
		Short: "Credit free balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeDeposit, Account: core.AccountID(account), Amount: amount})
		},
	}
	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show free and reserved balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.do(cmd, enclaveapi.Request{Type: enclaveapi.TypeBalance, Account: core.AccountID(account)})
		},
	}
	for _, c := range []*cobra.Command{deposit, balance} {
		c.Flags().StringVar(&account, "account", "", "Account (default: the caller)")
	}

	cmd.AddCommand(deposit, balance)
	return cmd
}

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the state file",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print every engine table and ledger balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, l, err := statefile.Load(a.cfg.State.Path, a.cfg.Engine.CoreConfig())
			if err != nil {
				return err
			}
			return printJSON(cmd, statefile.File{
				Version: statefile.Version,
				Engine:  engine.Snapshot(),
				Ledger:  l.Snapshot(),
			})
		},
	}

	verify := &cobra.Command{
		Use:   "check",
		Short: "Verify the state file loads and its indexes are consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := statefile.Load(a.cfg.State.Path, a.cfg.Engine.CoreConfig())
			if err != nil {
				return err
			}
			if err := engine.CheckInvariants(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.AddCommand(dump, verify)
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a receipt signing key for --signing-key",
		Long: `Write a new P-256 private key to --out and print its public key.

The public key is what receipt-validator needs to verify receipts signed
with --signing-key.`,
		Args: cobra.NoArgs,
		// No state or config is needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := receipt.GenerateKey()
			if err != nil {
				return err
			}
			private, err := receipt.PrivateKeyPEM(key)
			if err != nil {
				return err
			}
			public, err := receipt.PublicKeyPEM(&key.PublicKey)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(private), 0o600); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), public)
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "receipt-key.pem", "Private key output path")
	return cmd
}
