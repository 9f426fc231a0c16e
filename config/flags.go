// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// BuildFlagSet returns the flags every fhevm binary accepts
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("fhevm", pflag.ContinueOnError)
	AddFlags(fs)
	fs.Bool(VersionKey, false, "Display version and exit")
	fs.Bool(HelpKey, false, "Display help text and exit")
	return fs
}

// AddFlags registers the configuration flags on fs
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a JSON configuration file")
	fs.Uint64(ChainIDKey, defaultChainID, "Chain id of the target network")
	fs.String(RPCURLKey, defaultRPCURL, "JSON-RPC endpoint of the target network")
	fs.String(NetworkNameKey, "", "Human readable network name")
	fs.String(GatewayURLKey, "", "Decryption gateway; defaults to the built-in gateway for the chain")
	fs.String(KMSVerifierKey, "", "Address of the KMS verifier contract")
	fs.String(ACLAddressKey, "", "Address of the ACL contract")
	fs.String(PublicKeyKey, "", "Network FHE public key; fetched from the gateway when empty")
	fs.String(ReportingContractKey, "", "Address of the anonymous reporting contract")
	fs.Int(PublicCacheSizeKey, DefaultPublicCacheSize, "Number of public decryptions to memoize; 0 disables the cache")
	fs.String(LogLevelKey, defaultLogLevel, "Log level: verbo, debug, info, warn, error, fatal or off")
}

// DisplayUsageText prints the flag summary to stderr
func DisplayUsageText() {
	fmt.Fprintf(os.Stderr, "Usage: fhevm [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Every flag may also be given as an environment variable, e.g. %s_%s, or in the file named by --%s.\n\n",
		EnvPrefix, "CHAIN_ID", ConfigFileKey)
	BuildFlagSet().PrintDefaults()
}
