// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads client configuration from flags, environment
// variables and a JSON file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/fhevm"
)

var errInvalidAddress = errors.New("invalid address")

// Config is everything a binary needs to build a client.
type Config struct {
	Client            fhevm.Config
	ReportingContract common.Address
	PublicCacheSize   int
	LogLevel          string
}

// file mirrors the JSON configuration file
type file struct {
	Network struct {
		ChainID uint64 `mapstructure:"chainId"`
		RPCURL  string `mapstructure:"rpcUrl"`
		Name    string `mapstructure:"name"`
	} `mapstructure:"network"`
	Contracts struct {
		Gateway     string `mapstructure:"gateway"`
		KMSVerifier string `mapstructure:"kmsVerifier"`
		Reporting   string `mapstructure:"reporting"`
	} `mapstructure:"contracts"`
	ACLAddress      string `mapstructure:"aclAddress"`
	PublicKey       string `mapstructure:"publicKey"`
	PublicCacheSize int    `mapstructure:"publicCacheSize"`
	LogLevel        string `mapstructure:"logLevel"`
}

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Client.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	if cfg.PublicCacheSize < 0 {
		return Config{}, fmt.Errorf("failed to validate configuration: negative %s", PublicCacheSizeKey)
	}
	if _, err = log.ToLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %s: %w", LogLevelKey, err)
	}
	return cfg, nil
}

// BuildViper binds fs and the FHEVM_ environment variables to the settings
// and reads the config file, if one is named by flag or environment.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	for flagName, key := range settings {
		if f := fs.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
		if err := v.BindEnv(key, envName(flagName)); err != nil {
			return nil, err
		}
	}
	if f := fs.Lookup(ConfigFileKey); f != nil {
		if err := v.BindPFlag(ConfigFileKey, f); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv(ConfigFileKey, ConfigFileEnvKey); err != nil {
		return nil, err
	}

	filename := v.GetString(ConfigFileKey)
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(os.ExpandEnv(filename))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(settings[ChainIDKey], defaultChainID)
	v.SetDefault(settings[RPCURLKey], defaultRPCURL)
	v.SetDefault(settings[PublicCacheSizeKey], DefaultPublicCacheSize)
	v.SetDefault(settings[LogLevelKey], defaultLogLevel)
}

// BuildConfig constructs the client config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}

	cfg := Config{
		Client: fhevm.Config{
			Network: fhevm.Network{
				ChainID: f.Network.ChainID,
				RPCURL:  f.Network.RPCURL,
				Name:    f.Network.Name,
			},
			Contracts: fhevm.Contracts{
				Gateway: f.Contracts.Gateway,
			},
			PublicKey: f.PublicKey,
		},
		PublicCacheSize: f.PublicCacheSize,
		LogLevel:        f.LogLevel,
	}

	var err error
	if cfg.Client.Contracts.KMSVerifier, err = parseAddress(KMSVerifierKey, f.Contracts.KMSVerifier); err != nil {
		return Config{}, err
	}
	if cfg.Client.ACLAddress, err = parseAddress(ACLAddressKey, f.ACLAddress); err != nil {
		return Config{}, err
	}
	if cfg.ReportingContract, err = parseAddress(ReportingContractKey, f.Contracts.Reporting); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseAddress(key, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w for %s: %q", errInvalidAddress, key, s)
	}
	return common.HexToAddress(s), nil
}

func envName(flagName string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
