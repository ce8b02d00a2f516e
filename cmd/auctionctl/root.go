package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/logging"
	"github.com/cloudx-io/assetauction/receipt"
	"github.com/cloudx-io/assetauction/sequencer"
	"github.com/cloudx-io/assetauction/statefile"
)

// app holds the global flags and what PersistentPreRunE derives from them.
type app struct {
	configPath string
	statePath  string
	caller     string
	at         string
	signingKey string

	cfg   *config.Config
	log   logrus.FieldLogger
	clock core.Clock
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "auctionctl",
		Short: "Operate a sealed-leaderboard asset auction from the command line",
		Long: "auctionctl applies auction operations to a local CBOR state file.\n\n" +
			"Each invocation is one request: the state is loaded, the request is\n" +
			"applied, and the state is saved before the JSON response is printed.",
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv("AUCTION_CONFIG"), "Path to YAML config (env AUCTION_CONFIG)")
	flags.StringVar(&a.statePath, "state", "", "State file (overrides state.path)")
	flags.StringVar(&a.caller, "as", os.Getenv("AUCTION_CALLER"), "Account submitting the request (env AUCTION_CALLER)")
	flags.StringVar(&a.at, "at", "", "Run as if the clock read this RFC 3339 time")
	flags.StringVar(&a.signingKey, "signing-key", "", "EC private key PEM used to sign settlement receipts")

	root.AddCommand(
		newAssetCmd(a),
		newAuctionCmd(a),
		newBidCmd(a),
		newAccountCmd(a),
		newStateCmd(a),
		newKeygenCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.statePath != "" {
		cfg.State.Path = a.statePath
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if cfg.Logging.File == "" {
		logger.SetOutput(cmd.ErrOrStderr())
	}
	a.log = logging.WithComponent(logger, "auctionctl")

	a.clock = core.ClockFunc(time.Now)
	if a.at != "" {
		at, err := time.Parse(time.RFC3339, a.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		a.clock = core.ClockFunc(func() time.Time { return at })
	}
	return nil
}

// open restores the state file into a sequencer that saves after every
// successful mutation.
func (a *app) open() (*sequencer.Sequencer, error) {
	path := a.cfg.State.Path
	events := &core.RecordingSink{}
	opts := append(sequencer.EngineOptions(events, a.log), core.WithClock(a.clock))

	engine, l, err := statefile.Load(path, a.cfg.Engine.CoreConfig(), opts...)
	if err != nil {
		return nil, err
	}

	seqOpts := []sequencer.Option{
		sequencer.WithLogger(a.log),
		sequencer.WithCommit(func(e *core.Engine, l *ledger.Ledger) error {
			return statefile.Save(path, e, l)
		}),
	}
	if a.signingKey != "" {
		signer, err := loadSigner(a.signingKey)
		if err != nil {
			return nil, err
		}
		seqOpts = append(seqOpts, sequencer.WithSigner(signer))
	}
	return sequencer.New(engine, l, events, seqOpts...), nil
}

func loadSigner(path string) (*receipt.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := receipt.ParsePrivateKeyPEM(string(data))
	if err != nil {
		return nil, err
	}
	return receipt.NewSigner(key)
}

// do runs req as the --as caller and prints the response. A failed request
// returns an error so the process exits non-zero.
func (a *app) do(cmd *cobra.Command, req enclaveapi.Request) error {
	seq, err := a.open()
	if err != nil {
		return err
	}
	if req.Caller == "" {
		req.Caller = core.AccountID(a.caller)
	}

	resp := seq.Handle(req)
	if err := printJSON(cmd, resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s: %s", resp.ErrorKind, resp.Message)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
