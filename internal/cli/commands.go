package cli

import (
	"context"
	"fmt"
	"strconv"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/spf13/cobra"

	"github.com/isometry/ldapasync/ldap"
)

var searchScopes = map[string]int{
	"base": goldap.ScopeBaseObject,
	"one":  goldap.ScopeSingleLevel,
	"sub":  goldap.ScopeWholeSubtree,
}

func newSearchCommand(o *globalOptions) *cobra.Command {
	var (
		scope     string
		sizeLimit int
		pageSize  uint32
	)

	cmd := &cobra.Command{
		Use:   "search BASE [FILTER] [ATTRIBUTE...]",
		Short: "Search the directory and print matching entries as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchScope, ok := searchScopes[scope]
			if !ok {
				return fmt.Errorf("invalid scope %q: must be base, one or sub", scope)
			}

			filter := "(objectClass=*)"
			if len(args) > 1 {
				filter = args[1]
			}
			var attributes []string
			if len(args) > 2 {
				attributes = args[2:]
			}

			req := goldap.NewSearchRequest(
				args[0],
				searchScope,
				goldap.NeverDerefAliases,
				sizeLimit,
				0,
				false,
				filter,
				attributes,
				nil,
			)

			return o.withClient(cmd, func(ctx context.Context, client *ldap.Client) error {
				var (
					result *goldap.SearchResult
					err    error
				)
				if pageSize > 0 {
					result, err = client.SearchWithPaging(ctx, req, pageSize)
				} else {
					result, err = client.Search(ctx, req)
				}
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), renderEntries(result.Entries))
			})
		},
	}

	cmd.Flags().StringVarP(&scope, "scope", "s", "sub", "search scope: base, one or sub")
	cmd.Flags().IntVarP(&sizeLimit, "size-limit", "z", 0, "maximum number of entries (0 for no limit)")
	cmd.Flags().Uint32Var(&pageSize, "page-size", 0, "use paged results with this page size")

	return cmd
}

func newCompareCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare DN ATTRIBUTE VALUE",
		Short: "Compare an attribute value and print true or false",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, client *ldap.Client) error {
				matched, err := client.Compare(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(matched))
				return err
			})
		},
	}
}

func newWhoAmICommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the authorization identity of the connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, client *ldap.Client) error {
				result, err := client.WhoAmI(ctx)
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), parseAuthzID(result.AuthzID))
			})
		},
	}
}

func newDeleteCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete DN",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, client *ldap.Client) error {
				if err := client.Del(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newRenameCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename DN NEWDN",
		Short: "Rename or move an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, client *ldap.Client) error {
				if err := client.Rename(ctx, args[0], args[1]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
				return err
			})
		},
	}
}
