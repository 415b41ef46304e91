package main

import (
	"errors"
	"fmt"
	"time"

	"brain2-canvas/pkg/auth"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a development token signed with the server's secret",
	Long: `Mint an HS256 token for a local server.

The secret comes from --secret or jwt_secret in the config file. With
--save the token is written to the config file and used by later commands.`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		expiry, _ := cmd.Flags().GetDuration("expiry")
		save, _ := cmd.Flags().GetBool("save")

		s := settings
		if secret != "" {
			s.JWTSecret = secret
		}
		signed, err := mintToken(s, args[0], expiry)
		if err != nil {
			return err
		}

		if save {
			s.Token = signed
			if err := saveSettings(s); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			path, _ := settingsPath()
			fmt.Fprintf(cmd.ErrOrStderr(), "Token saved to %s\n", path)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "HS256 signing secret")
	tokenCmd.Flags().Duration("expiry", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().Bool("save", false, "store the token in the config file")
}

func mintToken(s Settings, userID string, expiry time.Duration) (string, error) {
	if s.JWTSecret == "" {
		return "", errors.New("no signing secret: pass --secret or set jwt_secret in the config file")
	}
	gen, err := auth.NewJWTGenerator(auth.JWTConfig{
		SecretKey: s.JWTSecret,
		Issuer:    s.Issuer,
		Audience:  s.Audience,
	}, expiry)
	if err != nil {
		return "", err
	}
	return gen.GenerateToken(userID, "", []string{"user"})
}
