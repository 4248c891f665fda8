package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/isometry/ldapasync/ldap"
	"github.com/isometry/ldapasync/metrics"
)

// stringValue returns the flag value when set, otherwise the environment.
func stringValue(flagValue, envVar string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envVar)
}

// clientOptions builds connection options from the environment overlaid
// with the persistent flags. With --domain and no URL from either source,
// the most preferred discovered server is used.
func (o *globalOptions) clientOptions(ctx context.Context) (*ldap.Options, error) {
	opts, err := ldap.OptionsFromEnv()
	if err != nil {
		return nil, err
	}

	switch {
	case o.url != "":
		opts.URL = o.url
	case o.domain != "" && os.Getenv(ldap.EnvURL) == "":
		servers, err := discoverServers(ctx, o.resolver, o.domain)
		if err != nil {
			return nil, err
		}
		opts.URL = servers[0].URL()
		tflog.SubsystemInfo(ctx, subsystemCLI, "Discovered directory server", map[string]any{
			"domain": o.domain,
			"url":    opts.URL,
			"source": servers[0].Source,
		})
	}
	if o.timeout > 0 {
		opts.Timeout = o.timeout
	}
	if o.insecure {
		opts.InsecureSkipVerify = true
		opts.TLSConfig.InsecureSkipVerify = true //nolint:gosec // opt-in only
	}

	return opts, nil
}

// withClient dials, secures and authenticates a connection, runs fn, then
// unbinds.
func (o *globalOptions) withClient(cmd *cobra.Command, fn func(ctx context.Context, client *ldap.Client) error) error {
	ctx := initializeLogging(cmd.Context())

	opts, err := o.clientOptions(ctx)
	if err != nil {
		return err
	}

	if o.dial != nil {
		opts.Dial = o.dial
	}
	client := ldap.New(ctx, opts)

	if o.metrics {
		collector := metrics.NewCollector("ldapasync")
		registry := prometheus.NewRegistry()
		if err := collector.Register(registry); err != nil {
			return err
		}
		detach := collector.Attach(client)
		defer func() {
			detach()
			if err := writeMetrics(cmd.ErrOrStderr(), registry); err != nil {
				tflog.SubsystemWarn(ctx, subsystemCLI, "Failed to write metrics", map[string]any{"error": err.Error()})
			}
		}()
	}

	start := time.Now()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.URL, err)
	}
	tflog.SubsystemDebug(ctx, subsystemCLI, "Connected", map[string]any{
		"url":         opts.URL,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	// Deferred after the metrics writer so the close event is recorded
	// before the exposition is written.
	defer client.Close()

	if o.startTLS {
		if err := client.StartTLS(ctx, nil); err != nil {
			return fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	if err := o.authenticate(ctx, client, opts.URL); err != nil {
		return err
	}

	runErr := fn(ctx, client)

	if err := client.Unbind(ctx); err != nil {
		tflog.SubsystemDebug(ctx, subsystemCLI, "Unbind failed", map[string]any{"error": err.Error()})
	}

	return runErr
}

// authenticate binds with the method selected by --auth. A simple bind is
// skipped when no bind DN is configured.
func (o *globalOptions) authenticate(ctx context.Context, client *ldap.Client, serverURL string) error {
	bindDN := stringValue(o.bindDN, EnvBindDN)
	password := stringValue(o.bindPassword, EnvBindPassword)

	switch o.auth {
	case AuthSimple, "":
		if bindDN == "" {
			return nil
		}
		if _, err := client.Bind(ctx, bindDN, password); err != nil {
			return fmt.Errorf("bind as %s failed: %w", bindDN, err)
		}
		return nil

	case AuthExternal:
		if err := client.ExternalBind(ctx); err != nil {
			return fmt.Errorf("SASL EXTERNAL bind failed: %w", err)
		}
		return nil

	case AuthGSSAPI:
		cfg := o.kerberos
		cfg.Username = bindDN
		cfg.Password = password

		gssClient, err := ldap.NewGSSAPIClient(cfg)
		if err != nil {
			return err
		}
		spn, err := ldap.ServicePrincipal(cfg, serverURL)
		if err != nil {
			return err
		}
		if err := client.GSSAPIBind(ctx, gssClient, spn, ""); err != nil {
			return fmt.Errorf("GSSAPI bind as %s failed: %w", spn, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown authentication method %q: must be %s, %s or %s", o.auth, AuthSimple, AuthGSSAPI, AuthExternal)
	}
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
