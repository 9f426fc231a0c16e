// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable keys
	EnvPrefix        = "FHEVM"
	ConfigFileEnvKey = "FHEVM_CONFIG_FILE"

	// Top-level configuration keys
	ChainIDKey           = "chain-id"
	RPCURLKey            = "rpc-url"
	NetworkNameKey       = "network-name"
	GatewayURLKey        = "gateway-url"
	KMSVerifierKey       = "kms-verifier"
	ACLAddressKey        = "acl-address"
	PublicKeyKey         = "public-key"
	ReportingContractKey = "reporting-contract"
	PublicCacheSizeKey   = "public-cache-size"
	LogLevelKey          = "log-level"
)

// settings maps each flag to its path in the JSON config file
var settings = map[string]string{
	ChainIDKey:           "network.chainId",
	RPCURLKey:            "network.rpcUrl",
	NetworkNameKey:       "network.name",
	GatewayURLKey:        "contracts.gateway",
	KMSVerifierKey:       "contracts.kmsVerifier",
	ReportingContractKey: "contracts.reporting",
	ACLAddressKey:        "aclAddress",
	PublicKeyKey:         "publicKey",
	PublicCacheSizeKey:   "publicCacheSize",
	LogLevelKey:          "logLevel",
}

const (
	defaultChainID         = 11155111
	defaultRPCURL          = "https://ethereum-sepolia-rpc.publicnode.com"
	DefaultPublicCacheSize = 1024
	defaultLogLevel        = "info"
)
