// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/blinklabs-io/herita"
	"github.com/blinklabs-io/herita/api"
	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/internal/config"
	"github.com/blinklabs-io/herita/internal/node"
	"github.com/spf13/cobra"
)

// withRegistry opens the configured database without the API listener and
// runs fn against the loaded registry
func withRegistry(
	cmd *cobra.Command,
	flags *globalFlags,
	fn func(*config.Config, *certification.Registry) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun(cmd.ErrOrStderr(), flags.debug)
	opts, err := node.NodeOptions(cfg, logger, nil)
	if err != nil {
		return err
	}
	opts = append(
		opts,
		herita.WithAPIListenAddress(""),
		herita.WithTracing(false),
	)
	n, err := herita.New(herita.NewConfig(opts...))
	if err != nil {
		return err
	}
	if err := n.Start(cmd.Context()); err != nil {
		return errors.Join(err, n.Stop())
	}
	err = fn(cfg, n.Registry())
	return errors.Join(err, n.Stop())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addCallerFlag(cmd *cobra.Command, caller *string) {
	cmd.Flags().StringVar(
		caller,
		"caller",
		"",
		"identity performing the operation, defaults to adminIdentity",
	)
}

func resolveCaller(cfg *config.Config, caller string) (certification.Identity, error) {
	if caller == "" {
		return cfg.Admin(), nil
	}
	ret, err := certification.ParseIdentity(caller)
	if err != nil {
		return certification.NullIdentity, fmt.Errorf("invalid caller: %w", err)
	}
	return ret, nil
}

func parseTokenID(s string) (uint64, error) {
	tokenID, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token ID %q: %w", s, err)
	}
	return tokenID, nil
}

func parseScore(s string) (int, error) {
	score, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ESG score %q: %w", s, err)
	}
	return score, nil
}

func printCertification(
	w io.Writer,
	reg *certification.Registry,
	tokenID uint64,
) error {
	cert, err := reg.Certification(tokenID)
	if err != nil {
		return err
	}
	return printJSON(w, api.NewCertificationResponse(cert))
}

func issueCommand(flags *globalFlags) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "issue <recipient> <enterprise-id> <project-id> <amount> <esg-score>",
		Short: "Issue a certification",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := certification.ParseIdentity(args[0])
			if err != nil {
				return fmt.Errorf("invalid recipient: %w", err)
			}
			amount, ok := new(big.Int).SetString(args[3], 10)
			if !ok {
				return fmt.Errorf("invalid amount %q", args[3])
			}
			score, err := parseScore(args[4])
			if err != nil {
				return err
			}
			return withRegistry(cmd, flags, func(cfg *config.Config, reg *certification.Registry) error {
				callerID, err := resolveCaller(cfg, caller)
				if err != nil {
					return err
				}
				tokenID, err := reg.Issue(callerID, recipient, args[1], args[2], amount, score)
				if err != nil {
					return err
				}
				return printCertification(cmd.OutOrStdout(), reg, tokenID)
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func verifyCommand(flags *globalFlags) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "verify <token-id>",
		Short: "Mark a certification as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return withRegistry(cmd, flags, func(cfg *config.Config, reg *certification.Registry) error {
				callerID, err := resolveCaller(cfg, caller)
				if err != nil {
					return err
				}
				if err := reg.Verify(callerID, tokenID); err != nil {
					return err
				}
				return printCertification(cmd.OutOrStdout(), reg, tokenID)
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func updateScoreCommand(flags *globalFlags) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "update-score <token-id> <esg-score>",
		Short: "Change the ESG score of a certification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			score, err := parseScore(args[1])
			if err != nil {
				return err
			}
			return withRegistry(cmd, flags, func(cfg *config.Config, reg *certification.Registry) error {
				callerID, err := resolveCaller(cfg, caller)
				if err != nil {
					return err
				}
				if err := reg.UpdateScore(callerID, tokenID, score); err != nil {
					return err
				}
				return printCertification(cmd.OutOrStdout(), reg, tokenID)
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func transferCommand(flags *globalFlags) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "transfer <token-id> <recipient>",
		Short: "Move a certification token to a new holder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			to, err := certification.ParseIdentity(args[1])
			if err != nil {
				return fmt.Errorf("invalid recipient: %w", err)
			}
			return withRegistry(cmd, flags, func(cfg *config.Config, reg *certification.Registry) error {
				callerID, err := resolveCaller(cfg, caller)
				if err != nil {
					return err
				}
				if err := reg.Transfer(callerID, tokenID, to); err != nil {
					return err
				}
				return printCertification(cmd.OutOrStdout(), reg, tokenID)
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func showCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <token-id>",
		Short: "Show a certification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return withRegistry(cmd, flags, func(_ *config.Config, reg *certification.Registry) error {
				return printCertification(cmd.OutOrStdout(), reg, tokenID)
			})
		},
	}
}

func listCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <enterprise-id>",
		Short: "List the certifications of an enterprise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, flags, func(_ *config.Config, reg *certification.Registry) error {
				certs := reg.EnterpriseDetails(args[0])
				ret := make([]api.CertificationResponse, 0, len(certs))
				for _, cert := range certs {
					ret = append(ret, api.NewCertificationResponse(cert))
				}
				return printJSON(cmd.OutOrStdout(), ret)
			})
		},
	}
}

func scoreCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "score <enterprise-id>",
		Short: "Show the aggregate score of an enterprise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, flags, func(_ *config.Config, reg *certification.Registry) error {
				totalScore, verifiedCount := reg.EnterpriseScore(args[0])
				return printJSON(cmd.OutOrStdout(), api.EnterpriseScoreResponse{
					EnterpriseID:     args[0],
					TotalSponsorship: reg.EnterpriseSponsorship(args[0]).String(),
					TotalScore:       totalScore,
					VerifiedCount:    verifiedCount,
				})
			})
		},
	}
}

func holdingsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings <identity>",
		Short: "List the tokens held by an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, err := certification.ParseIdentity(args[0])
			if err != nil {
				return fmt.Errorf("invalid identity: %w", err)
			}
			return withRegistry(cmd, flags, func(_ *config.Config, reg *certification.Registry) error {
				return printJSON(cmd.OutOrStdout(), api.HoldingsResponse{
					Holder:   holder.String(),
					TokenIDs: reg.TokensOf(holder),
					Balance:  reg.BalanceOf(holder),
				})
			})
		},
	}
}

func adminCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Registry administrator commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the registry administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, flags, func(_ *config.Config, reg *certification.Registry) error {
				return printJSON(cmd.OutOrStdout(), api.InfoResponse{
					Name:                reg.Name(),
					Symbol:              reg.Symbol(),
					Admin:               reg.Admin().String(),
					TotalCertifications: reg.TotalCertifications(),
					TotalSupply:         reg.TotalSupply(),
				})
			})
		},
	})
	var caller string
	transferCmd := &cobra.Command{
		Use:   "transfer <new-admin>",
		Short: "Hand the administrator role to another identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newAdmin, err := certification.ParseIdentity(args[0])
			if err != nil {
				return fmt.Errorf("invalid identity: %w", err)
			}
			return withRegistry(cmd, flags, func(cfg *config.Config, reg *certification.Registry) error {
				callerID, err := resolveCaller(cfg, caller)
				if err != nil {
					return err
				}
				if err := reg.TransferAdmin(callerID, newAdmin); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reg.Admin().String())
				return nil
			})
		},
	}
	addCallerFlag(transferCmd, &caller)
	cmd.AddCommand(transferCmd)
	return cmd
}
