package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/internal/cli/output"
	"github.com/marmos91/sharescan/pkg/api/auth"
)

var (
	tokenSubject  string
	tokenDuration time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	Long: `Issue a bearer token for the HTTP API, signed with api.jwt.secret.

Examples:
  # Token valid for api.jwt.token_duration
  sharescan token --subject ci

  # Token valid for one hour, printed as JSON
  sharescan token --subject alice --duration 1h -o json`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (required)")
	tokenCmd.Flags().DurationVar(&tokenDuration, "duration", 0, "Token lifetime (default: api.jwt.token_duration)")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.API.JWT.Secret == "" {
		return errors.New("api.jwt.secret is not set; the API accepts unauthenticated requests")
	}

	duration := cfg.API.JWT.TokenDuration
	if tokenDuration > 0 {
		duration = tokenDuration
	}

	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        cfg.API.JWT.Secret,
		TokenDuration: duration,
	})
	if err != nil {
		return err
	}

	tok, err := svc.IssueToken(tokenSubject)
	if err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	if printer.Format() != output.FormatTable {
		return printer.Print(tok)
	}

	printer.Printf("%s\n", tok.AccessToken)
	cmd.PrintErrf("Expires at %s\n", tok.ExpiresAt.Format(time.RFC3339))
	return nil
}

