// Command credentials prints the values needed to protect POST /daily.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/services"
	"github.com/dbt-cloudrun/utils"
)

var (
	keyLength    int
	tokenSubject string
	tokenTTL     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Generate credentials for POST /daily",
}

var apiKeyCmd = &cobra.Command{
	Use:   "api-key [key]",
	Short: "Prints an API key and the bcrypt hash to put into API_KEY_HASH",
	Long:  `Pass an existing key to hash it, or nothing to generate a random one.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			generated, err := utils.GenerateAPIKey(keyLength)
			if err != nil {
				return err
			}
			key = generated
			log.Info().Msg("Generated a new API key")
		}

		hash, err := utils.HashAPIKey(key)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "X-API-Key:    %s\n", key)
		fmt.Fprintf(cmd.OutOrStdout(), "API_KEY_HASH: %s\n", hash)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Prints a bearer token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, expiresAt, err := services.GenerateToken(config.GetEnv("JWT_SECRET", ""), tokenSubject, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Bearer token: %s\n", token)
		fmt.Fprintf(cmd.OutOrStdout(), "Expires at:   %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	apiKeyCmd.Flags().IntVar(&keyLength, "length", 32, "length of a generated key")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cloud-scheduler", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(apiKeyCmd, tokenCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	config.LoadEnv()

	cobra.CheckErr(rootCmd.Execute())
}
