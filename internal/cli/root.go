// Package cli implements the ldapasync command line.
package cli

import (
	"context"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapasync/ldap"
)

// Environment variables used as flag defaults.
const (
	EnvBindDN       = "LDAP_BIND_DN"
	EnvBindPassword = "LDAP_BIND_PASSWORD"
)

// Authentication methods accepted by --auth.
const (
	AuthSimple   = "simple"
	AuthGSSAPI   = "gssapi"
	AuthExternal = "external"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	url          string
	domain       string
	bindDN       string
	bindPassword string
	auth         string
	startTLS     bool
	insecure     bool
	timeout      time.Duration
	metrics      bool

	kerberos ldap.KerberosConfig

	dial     ldap.DialFunc
	resolver srvResolver
}

// Execute runs the root command against real servers.
func Execute(ctx context.Context) error {
	return NewRootCommand(nil).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Connections are opened with dial,
// or go-ldap's DialURL when dial is nil.
func NewRootCommand(dial ldap.DialFunc) *cobra.Command {
	o := &globalOptions{dial: dial, resolver: net.DefaultResolver}

	root := &cobra.Command{
		Use:          "ldapasync",
		Short:        "Run LDAP operations from the command line",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.url, "url", "", "server URL (default $"+ldap.EnvURL+" or ldap://localhost:389)")
	flags.StringVar(&o.domain, "domain", "", "discover the server through DNS SRV records when no URL is set")
	flags.StringVarP(&o.bindDN, "bind-dn", "D", "", "bind DN or principal (default $"+EnvBindDN+")")
	flags.StringVarP(&o.bindPassword, "bind-password", "w", "", "bind password (default $"+EnvBindPassword+")")
	flags.StringVar(&o.auth, "auth", AuthSimple, "authentication method: simple, gssapi or external")
	flags.BoolVarP(&o.startTLS, "starttls", "Z", false, "issue StartTLS before binding")
	flags.BoolVar(&o.insecure, "insecure", false, "skip TLS certificate verification")
	flags.DurationVar(&o.timeout, "timeout", 0, "per-request timeout (default $"+ldap.EnvTimeout+" or 30s)")
	flags.BoolVar(&o.metrics, "metrics", false, "print client metrics to stderr on exit")

	flags.StringVar(&o.kerberos.Realm, "realm", "", "Kerberos realm for gssapi")
	flags.StringVar(&o.kerberos.Keytab, "keytab", "", "Kerberos keytab for gssapi")
	flags.StringVar(&o.kerberos.CCache, "ccache", "", "Kerberos credential cache for gssapi")
	flags.StringVar(&o.kerberos.Krb5Conf, "krb5-conf", "", "path to krb5.conf (default "+ldap.DefaultKrb5Conf+")")
	flags.StringVar(&o.kerberos.SPN, "spn", "", "service principal for gssapi (default ldap/<host>)")

	root.AddCommand(
		newSearchCommand(o),
		newCompareCommand(o),
		newWhoAmICommand(o),
		newDeleteCommand(o),
		newRenameCommand(o),
	)

	return root
}
