package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-racer/leagueconnect/auth"
	"github.com/agent-racer/leagueconnect/transport"
)

func newRequestCmd(a *app) *cobra.Command {
	var (
		data        string
		useHTTP2    bool
		showHeaders bool
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send one request to the client API and print the response",
		Example: `  lcuctl request GET /lol-summoner/v1/current-summoner
  lcuctl request POST lol-lobby/v2/lobby --data '{"queueId":420}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}

			opts, err := a.authOptions()
			if err != nil {
				return err
			}
			creds, err := auth.Authenticate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			req := transport.RequestOptions{URL: args[1], Method: strings.ToUpper(args[0]), Body: body}
			var resp *transport.Response
			if useHTTP2 {
				session, err := transport.NewSession(cmd.Context(), creds)
				if err != nil {
					return err
				}
				defer session.Close()
				resp, err = session.Request(cmd.Context(), req)
				if err != nil {
					return err
				}
			} else {
				resp, err = transport.Request(cmd.Context(), req, creds)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(a.out, "%d %s\n", resp.Status(), req.Method+" "+transport.NormalizePath(req.URL))
			if showHeaders {
				for _, h := range resp.Headers() {
					fmt.Fprintf(a.out, "%s: %s\n", h.Name, h.Value)
				}
				fmt.Fprintln(a.out)
			}
			if text := resp.Text(); text != "" {
				fmt.Fprintln(a.out, text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().BoolVar(&useHTTP2, "http2", false, "Send the request over an HTTP/2 session")
	cmd.Flags().BoolVarP(&showHeaders, "include", "i", false, "Print response headers")
	return cmd
}
