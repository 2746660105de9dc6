package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmartynas/social-login/internal/endpoints"
)

type options struct {
	apiBaseURL  string
	redirectURI string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.apiBaseURL, "api-base-url", endpoints.DefaultAPIBaseURL, "base URL of the login API")
	cmd.PersistentFlags().StringVar(&o.redirectURI, "redirect-uri", endpoints.DefaultRedirectURI, "frontend URL the API redirects back to")
}

func (o *options) Endpoints() (*endpoints.Endpoints, error) {
	return endpoints.New(o.apiBaseURL, o.redirectURI)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "authurls",
		Short: "Print the OAuth2 login URLs",
		Long: `authurls prints the API base URL, the redirect URI and the
authorization URL of every supported identity provider.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.Endpoints()
			if err != nil {
				return err
			}
			return printAll(cmd.OutOrStdout(), e)
		},
	}
	opts.AddFlags(cmd)
	addGet(cmd, opts)
	return cmd
}

func addGet(parent *cobra.Command, opts *options) {
	parent.AddCommand(&cobra.Command{
		Use:   "get <provider>",
		Short: "Print the authorization URL of one provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.Endpoints()
			if err != nil {
				return err
			}
			p, err := endpoints.ParseProvider(args[0])
			if err != nil {
				return err
			}
			u, err := e.AuthURL(p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	})
}

func printAll(w io.Writer, e *endpoints.Endpoints) error {
	if _, err := fmt.Fprintf(w, "api_base_url\t%s\nredirect_uri\t%s\n", e.APIBaseURL(), e.RedirectURI()); err != nil {
		return err
	}
	for _, p := range endpoints.Providers() {
		u, err := e.AuthURL(p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", p, u); err != nil {
			return err
		}
	}
	return nil
}
