package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agent-racer/leagueconnect/auth"
)

func newCredentialsCmd(a *app) *cobra.Command {
	var showToken, withCert bool

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Locate the client and print its API credentials as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.authOptions()
			if err != nil {
				return err
			}
			creds, err := auth.Authenticate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if !showToken {
				creds = creds.Masked()
			}
			if !withCert {
				creds.Certificate = ""
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(creds)
		},
	}
	cmd.Flags().BoolVar(&showToken, "show-token", false, "Print the auth token unmasked")
	cmd.Flags().BoolVar(&withCert, "with-certificate", false, "Include the trusted certificate in the output")
	return cmd
}
