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
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/herita/api"
	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/internal/config"
	"github.com/spf13/cobra"
)

func tokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [identity]",
		Short: "Sign an API bearer token, for adminIdentity by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			if cfg.JwtSecret == "" {
				return errors.New("jwtSecret is not configured")
			}
			subject := cfg.Admin()
			if len(args) == 1 {
				var err error
				subject, err = certification.ParseIdentity(args[0])
				if err != nil {
					return fmt.Errorf("invalid identity: %w", err)
				}
			}
			if subject == certification.NullIdentity {
				return errors.New("no identity given and adminIdentity is not configured")
			}
			token, err := api.NewToken([]byte(cfg.JwtSecret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
