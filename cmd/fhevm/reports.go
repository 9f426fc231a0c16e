// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm/config"
	"github.com/luxfi/fhevm/reporting"
)

var errNoReportingContract = errors.New("no reporting contract configured; set --" + config.ReportingContractKey)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Work with the anonymous reporting ledger",
}

var reportsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the ledger counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ledger, closeFn, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		stats, err := ledger.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

var reportsInfoCmd = &cobra.Command{
	Use:   "info <report-id>",
	Short: "Print the public state of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid report id %q: %w", args[0], err)
		}
		ledger, closeFn, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := ledger.ReportInfo(cmd.Context(), uint32(id))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Report:       %d\n", report.ID)
		fmt.Fprintf(out, "Status:       %s\n", report.Status)
		fmt.Fprintf(out, "Submitted:    %s\n", report.SubmittedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(out, "Investigator: %s\n", report.Investigator)
		return nil
	},
}

var reportsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "File a report signed with the key in " + privateKeyEnv,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		categoryName, _ := cmd.Flags().GetString("category")
		anonymous, _ := cmd.Flags().GetBool("anonymous")
		category, err := reporting.ParseCategory(categoryName)
		if err != nil {
			return err
		}

		ledger, closeFn, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		opts, err := transactOpts(cmd)
		if err != nil {
			return err
		}
		sub, err := ledger.SubmitReport(cmd.Context(), category, anonymous, opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, sub)
	},
}

var reportsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream new reports and status changes until interrupted",
	Long:  `Stream ReportSubmitted and ReportStatusChanged events. Requires a websocket RPC endpoint.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ledger, closeFn, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		submissions, err := ledger.WatchSubmissions(cmd.Context(), func(ev reporting.ReportSubmitted) {
			fmt.Fprintf(out, "block %d: report %d submitted (%s)\n", ev.Log.BlockNumber, ev.ReportID, ev.Category)
		})
		if err != nil {
			return err
		}
		defer submissions.Unsubscribe()

		changes, err := ledger.WatchStatusChanges(cmd.Context(), func(ev reporting.ReportStatusChanged) {
			fmt.Fprintf(out, "block %d: report %d is now %s\n", ev.Log.BlockNumber, ev.ReportID, ev.Status)
		})
		if err != nil {
			return err
		}
		defer changes.Unsubscribe()

		select {
		case <-cmd.Context().Done():
			return nil
		case <-submissions.Done():
			return submissions.Err()
		case <-changes.Done():
			return changes.Err()
		}
	},
}

func init() {
	reportsSubmitCmd.Flags().String("category", "", "Corruption, Fraud, Environmental, Safety, Discrimination or Other")
	reportsSubmitCmd.Flags().Bool("anonymous", true, "Hide the reporter's identity")
	_ = reportsSubmitCmd.MarkFlagRequired("category")

	reportsCmd.AddCommand(reportsStatsCmd)
	reportsCmd.AddCommand(reportsInfoCmd)
	reportsCmd.AddCommand(reportsSubmitCmd)
	reportsCmd.AddCommand(reportsWatchCmd)
}

func openLedger(cmd *cobra.Command) (*reporting.Ledger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ReportingContract == (common.Address{}) {
		return nil, nil, errNoReportingContract
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := ethclient.DialContext(cmd.Context(), cfg.Client.Network.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Client.Network.RPCURL, err)
	}
	ledger, err := reporting.New(cfg.ReportingContract, client, reporting.WithLogger(logger))
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return ledger, client.Close, nil
}

func transactOpts(cmd *cobra.Command) (*bind.TransactOpts, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	hexKey := os.Getenv(privateKeyEnv)
	if hexKey == "" {
		return nil, errNoPrivateKey
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(cfg.Client.Network.ChainID))
}
