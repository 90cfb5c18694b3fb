package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		operator   string
		signingKey string
		issuer     string
		audience   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the API",
		Long: `Mint a signed bearer token accepted by the API's mutating routes. The
signing key must match the server's JWT_SIGNING_KEY. The token is
written to stdout so it can be piped or captured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if signingKey == "" {
				signingKey = os.Getenv("JWT_SIGNING_KEY")
			}
			if signingKey == "" {
				return fmt.Errorf("no signing key: set --signing-key or JWT_SIGNING_KEY")
			}

			jwtService := auth.NewJWTService(auth.JWTConfig{
				SigningKey: signingKey,
				Issuer:     issuer,
				Audience:   audience,
			})

			token, expiresAt, err := jwtService.GenerateOperatorToken(operator)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}

			fmt.Fprintf(os.Stderr, "✓ Token for %s, valid until %s\n", operator, expiresAt.Format(time.RFC3339))
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "operator identity embedded in the token")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "token signing key (defaults to JWT_SIGNING_KEY)")
	cmd.Flags().StringVar(&issuer, "issuer", "https://api.trafficlens.io", "issuer claim")
	cmd.Flags().StringVar(&audience, "audience", "trafficlens-api", "audience claim")
	cmd.MarkFlagRequired("operator")

	return cmd
}
