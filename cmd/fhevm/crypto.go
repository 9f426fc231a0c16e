// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm"
	"github.com/luxfi/fhevm/crypto/eip712"
	"github.com/luxfi/fhevm/crypto/fhe"
	"github.com/luxfi/fhevm/engine"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Print the decryption gateway for the configured chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd, engine.NewUnavailableEncoder)
		if err != nil {
			return err
		}
		defer s.Close()

		url, err := s.client.GatewayURL()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a plaintext for a confidential contract",
	Long: `Encrypt a value as a ciphertext of the given type, e.g.

  fhevm encrypt --insecure-plain-encoder --type euint32 --value 42

This build has no native FHE library. The only encoder it carries writes the
plaintext in ciphertext framing without encrypting it, so encrypt refuses to
run unless --insecure-plain-encoder acknowledges that.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		insecure, _ := cmd.Flags().GetBool(insecurePlainEncoderKey)
		if !insecure {
			return &fhevm.Error{Kind: fhevm.KindConfiguration, Op: "encrypt", Err: errNoEncoder}
		}
		typeName, _ := cmd.Flags().GetString("type")
		value, _ := cmd.Flags().GetString("value")
		contractHex, _ := cmd.Flags().GetString("contract")

		typ, err := fhe.ParseEncryptedType(typeName)
		if err != nil {
			return err
		}
		pt, err := fhe.ParsePlaintext(typ, value)
		if err != nil {
			return err
		}

		s, err := newSession(cmd, engine.NewPlainEncoder)
		if err != nil {
			return err
		}
		defer s.Close()
		s.logger.Warn("encrypting with the plain encoder; the output is not confidential",
			log.Uint64("chainID", s.cfg.Client.Network.ChainID),
		)

		var input interface{} = pt.Big()
		switch typ {
		case fhe.EBool:
			input = pt.Bool()
		case fhe.EAddress:
			input = pt.Address()
		}

		if contractHex == "" {
			ct, err := s.encryptor.Encrypt(cmd.Context(), input, typ)
			if err != nil {
				return err
			}
			return printJSON(cmd, ct)
		}
		contract, err := parseAddress(contractHex)
		if err != nil {
			return fmt.Errorf("--contract: %w", err)
		}
		ct, err := s.encryptor.EncryptInput(cmd.Context(), input, typ, contract)
		if err != nil {
			return err
		}
		return printJSON(cmd, ct)
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a decryption authorization request",
	Long: `Sign an EIP-712 decryption request with the key in FHEVM_PRIVATE_KEY.
With --to the request instead delegates read access to another address.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		contract, handle, err := targetFlags(cmd)
		if err != nil {
			return err
		}
		toHex, _ := cmd.Flags().GetString("to")

		s, err := newSession(cmd, engine.NewUnavailableEncoder)
		if err != nil {
			return err
		}
		defer s.Close()

		cred, err := s.credential()
		if err != nil {
			return err
		}

		var req *eip712.SignedRequest
		if toHex == "" {
			req, err = eip712.NewService(nil).Sign(cmd.Context(), cred, contract, handle, cred.Address(), nil)
		} else {
			to, perr := parseAddress(toHex)
			if perr != nil {
				return fmt.Errorf("--to: %w", perr)
			}
			req, err = s.decryptor.CreateReencryptionRequest(cmd.Context(), contract, handle, cred.Address(), to, cred)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, req)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [request.json]",
	Short: "Verify a signed request and print its signer",
	Long:  `Verify a signed request produced by "fhevm sign". The request is read from the named file, or stdin when omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		raw, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		var req eip712.SignedRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("failed to parse request: %w", err)
		}
		signer, err := eip712.VerifyRequest(&req)
		if err != nil {
			return err
		}
		if signer != req.Message.UserAddress {
			return fmt.Errorf("%w: signed by %s, not %s", eip712.ErrInvalidSignature, signer, req.Message.UserAddress)
		}
		id, err := req.ID()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid signature by %s (request %s)\n", signer, id)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a ciphertext the configured key is allowed to read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		contract, handle, err := targetFlags(cmd)
		if err != nil {
			return err
		}
		s, err := newSession(cmd, engine.NewUnavailableEncoder)
		if err != nil {
			return err
		}
		defer s.Close()

		cred, err := s.credential()
		if err != nil {
			return err
		}
		pt, err := s.decryptor.RequestUserDecrypt(cmd.Context(), fhevm.DecryptionParams{
			ContractAddress: contract,
			UserAddress:     cred.Address(),
			Handle:          handle,
			Signer:          cred,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pt.String())
		return nil
	},
}

var decryptPublicCmd = &cobra.Command{
	Use:   "decrypt-public",
	Short: "Decrypt a ciphertext the contract has made public",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		contract, handle, err := targetFlags(cmd)
		if err != nil {
			return err
		}
		s, err := newSession(cmd, engine.NewUnavailableEncoder)
		if err != nil {
			return err
		}
		defer s.Close()

		pt, err := s.decryptor.RequestPublicDecrypt(cmd.Context(), contract, handle)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pt.String())
		return nil
	},
}

func init() {
	encryptCmd.Flags().String("type", "", "Ciphertext type: ebool, euint8 ... euint256, eaddress")
	encryptCmd.Flags().String("value", "", "Plaintext value")
	encryptCmd.Flags().String("contract", "", "Contract the input is produced for")
	encryptCmd.Flags().Bool(insecurePlainEncoderKey, false, "Write the plaintext in ciphertext framing without encrypting it; for local networks and tests only")
	_ = encryptCmd.MarkFlagRequired("type")
	_ = encryptCmd.MarkFlagRequired("value")

	addTargetFlags(signCmd)
	signCmd.Flags().String("to", "", "Delegate read access to this address instead of requesting it")

	addTargetFlags(decryptCmd)
	addTargetFlags(decryptPublicCmd)
}
