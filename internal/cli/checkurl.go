package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quizguard/internal/sanitize"
	"github.com/felixgeelhaar/quizguard/internal/ssrf"
)

// NewCheckURLCmd builds the subcommand that runs a URL through the SSRF gate
// and optionally through DNS resolution
func NewCheckURLCmd() *cobra.Command {
	var allowHTTP bool
	var resolve bool

	cmd := &cobra.Command{
		Use:   "checkurl <url>",
		Short: "Run a URL through the outbound-request safety gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validated, err := ssrf.NewValidator().ValidateURL(args[0], allowHTTP)
			if err != nil {
				return err
			}
			if resolve {
				dns := ssrf.NewDNSValidator(nil, nil)
				addrs, err := dns.Resolve(cmd.Context(), hostname(validated))
				if err != nil {
					return err
				}
				for _, addr := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), addr)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok:", validated)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowHTTP, "allow-http", false, "accept http in addition to https")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "also resolve the host and check the addresses")
	return cmd
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// NewLintRegexCmd builds the subcommand that checks a creator-supplied regex
// constraint for catastrophic backtracking shapes
func NewLintRegexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lintregex <pattern>",
		Short: "Check a regex constraint for unsafe backtracking shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := sanitize.ValidateRegexPattern(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok:", pattern)
			return nil
		},
	}
}
