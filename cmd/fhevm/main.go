// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm"
	"github.com/luxfi/fhevm/config"
	"github.com/luxfi/fhevm/engine"
	"github.com/luxfi/fhevm/signer"
)

// privateKeyEnv names the environment variable holding the signing key. Keys
// are never accepted as flags so they stay out of shell history.
const privateKeyEnv = "FHEVM_PRIVATE_KEY"

const insecurePlainEncoderKey = "insecure-plain-encoder"

var (
	version   = "dev"
	buildDate = "unknown"

	errNoPrivateKey = errors.New(privateKeyEnv + " is not set")
	errBadHash      = errors.New("expected a 32 byte hex value")
	errBadAddress   = errors.New("expected a 20 byte hex address")
	errNoEncoder    = errors.New("no FHE encoder in this build; pass --" + insecurePlainEncoderKey + " to write unencrypted inputs")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fhevm",
	Short: "Client for confidential smart contracts",
	Long: `fhevm encrypts inputs for confidential contracts, signs decryption
authorization requests and talks to the decryption gateway.

Configuration is read from flags, FHEVM_* environment variables and an
optional JSON file, in that order of precedence.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(decryptPublicCmd)
	rootCmd.AddCommand(reportsCmd)
}

// session is the set of components one command invocation works with
type session struct {
	cfg       config.Config
	logger    log.Logger
	client    *fhevm.Client
	encryptor *fhevm.Encryptor
	decryptor *fhevm.Decryptor
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	return config.NewConfig(v)
}

// newLogger builds the leveled logger for cfg. Logs go to stderr so they
// never mix with the JSON written to stdout.
func newLogger(cfg config.Config) (log.Logger, error) {
	logLevel, err := log.ToLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error reading log level from config: %w", err)
	}
	return log.NewLogger(
		"fhevm",
		*log.NewWrappedCore(
			logLevel,
			os.Stderr,
			log.JSON.ConsoleEncoder(),
		),
	), nil
}

// newSession builds the components for one command. encoders decides how
// inputs are encrypted; commands that never encrypt pass
// engine.NewUnavailableEncoder.
func newSession(cmd *cobra.Command, encoders engine.EncoderFactory) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	metrics, err := fhevm.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	factory := engine.NewFactory(encoders, engine.WithLogger(logger))
	client, err := fhevm.New(
		cfg.Client,
		factory.New,
		fhevm.WithLogger(logger),
		fhevm.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	decryptOpts := []fhevm.DecryptorOption{
		fhevm.WithDecryptorLogger(logger),
		fhevm.WithDecryptorMetrics(metrics),
	}
	if cfg.PublicCacheSize > 0 {
		decryptOpts = append(decryptOpts, fhevm.WithPublicCache(cfg.PublicCacheSize))
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		client: client,
		encryptor: fhevm.NewEncryptor(
			client,
			fhevm.WithEncryptorLogger(logger),
			fhevm.WithEncryptorMetrics(metrics),
		),
		decryptor: fhevm.NewDecryptor(client, decryptOpts...),
	}, nil
}

func (s *session) chainID() *big.Int {
	return new(big.Int).SetUint64(s.cfg.Client.Network.ChainID)
}

func (s *session) credential() (*signer.LocalSigner, error) {
	key := os.Getenv(privateKeyEnv)
	if key == "" {
		return nil, errNoPrivateKey
	}
	return signer.NewLocalSignerFromHex(key, s.chainID())
}

func (s *session) Close() {
	s.client.Dispose()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errBadAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != 2+2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", errBadHash, s)
	}
	return common.HexToHash(s), nil
}

// targetFlags reads the --contract and --handle flags shared by the
// decryption commands.
func targetFlags(cmd *cobra.Command) (common.Address, common.Hash, error) {
	contractHex, _ := cmd.Flags().GetString("contract")
	handleHex, _ := cmd.Flags().GetString("handle")
	contract, err := parseAddress(contractHex)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("--contract: %w", err)
	}
	handle, err := parseHash(handleHex)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("--handle: %w", err)
	}
	return contract, handle, nil
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("contract", "", "Address of the contract holding the ciphertext")
	cmd.Flags().String("handle", "", "32 byte ciphertext handle")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("handle")
}
