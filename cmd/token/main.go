// Command token prints a signed development token for the locks service.
package main

import (
	"fmt"
	"os"
	"time"

	"skedit/pkg/auth"
	"skedit/pkg/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var p auth.Principal
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a development token signed with " + config.EnvJWTSecret,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv(config.EnvJWTSecret)
			if secret == "" {
				return fmt.Errorf("%s is not set", config.EnvJWTSecret)
			}
			if p.Role != config.RoleUser && p.Role != config.RoleAdmin {
				return fmt.Errorf("unknown role %q", p.Role)
			}
			token, err := auth.NewVerifier(secret).Issue(p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar(&p.Email, "email", "", "email address")
	cmd.Flags().StringVar(&p.Role, "role", config.RoleUser, "role: user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
