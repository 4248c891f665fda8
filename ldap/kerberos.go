package ldap

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
)

// DefaultKrb5Conf is used when KerberosConfig.Krb5Conf is empty.
const DefaultKrb5Conf = "/etc/krb5.conf"

// KerberosConfig describes the credentials used for a GSSAPI bind.
type KerberosConfig struct {
	Realm    string // Kerberos realm; taken from Username when it has the form user@REALM
	Username string // Principal name
	Password string // Password, used when no credential cache or keytab is available
	Keytab   string // Path to a keytab file; KRB5_KTNAME or /etc/krb5.keytab when empty
	CCache   string // Path to a credential cache; KRB5CCNAME or /tmp/krb5cc_<uid> when empty
	Krb5Conf string // Path to krb5.conf
	SPN      string // Service principal override
}

// NewGSSAPIClient builds a GSSAPI client for GSSAPIBind.
// Priority order: credential cache → keytab → password.
//
// When Krb5Conf is empty and DefaultKrb5Conf does not exist, a configuration
// relying on DNS SRV lookups for the realm's KDCs is generated instead.
func NewGSSAPIClient(cfg KerberosConfig) (ldap.GSSAPIClient, error) {
	explicitConf := cfg.Krb5Conf != ""

	cfg, err := prepareKerberosConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kerberos configuration error: %w", err)
	}

	krb5conf, err := loadKrb5Conf(cfg, explicitConf)
	if err != nil {
		return nil, err
	}

	settings := krb5client.DisablePAFXFAST(true)

	if ccachePath := credentialCachePath(cfg); fileExists(ccachePath) {
		ccache, err := credentials.LoadCCache(ccachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load credential cache %s: %w", ccachePath, err)
		}
		cl, err := krb5client.NewFromCCache(ccache, krb5conf, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kerberos client from credential cache: %w", err)
		}
		return &gssapi.Client{Client: cl}, nil
	}

	if keytabPath := keytabPath(cfg); cfg.Username != "" && fileExists(keytabPath) {
		kt, err := keytab.Load(keytabPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load keytab %s: %w", keytabPath, err)
		}
		return &gssapi.Client{Client: krb5client.NewWithKeytab(cfg.Username, cfg.Realm, kt, krb5conf, settings)}, nil
	}

	if cfg.Password != "" {
		return &gssapi.Client{Client: krb5client.NewWithPassword(cfg.Username, cfg.Realm, cfg.Password, krb5conf, settings)}, nil
	}

	return nil, errors.New("no suitable credentials found for Kerberos authentication")
}

// prepareKerberosConfig fills defaults and validates cfg.
func prepareKerberosConfig(cfg KerberosConfig) (KerberosConfig, error) {
	if cfg.Krb5Conf == "" {
		cfg.Krb5Conf = DefaultKrb5Conf
	}

	if cfg.Realm == "" {
		if user, realm, ok := strings.Cut(cfg.Username, "@"); ok && realm != "" {
			cfg.Username = user
			cfg.Realm = realm
		}
	}

	if cfg.Realm == "" {
		return cfg, errors.New("kerberos realm is required (set Realm or include it in Username)")
	}

	hasCCache := fileExists(credentialCachePath(cfg))
	if cfg.Username == "" && !hasCCache {
		return cfg, errors.New("username (principal) is required for Kerberos authentication")
	}

	hasKeytab := fileExists(keytabPath(cfg))
	if !hasCCache && !hasKeytab && cfg.Password == "" {
		return cfg, errors.New("no suitable Kerberos credentials found: provide CCache, Keytab or Password")
	}

	return cfg, nil
}

// loadKrb5Conf reads cfg.Krb5Conf. Only an implicit default path may fall
// back to a generated configuration.
func loadKrb5Conf(cfg KerberosConfig, explicit bool) (*krb5config.Config, error) {
	if fileExists(cfg.Krb5Conf) {
		conf, err := krb5config.Load(cfg.Krb5Conf)
		if err != nil {
			return nil, fmt.Errorf("failed to load Kerberos configuration %s: %w", cfg.Krb5Conf, err)
		}
		return conf, nil
	}

	if explicit {
		return nil, fmt.Errorf("Kerberos configuration file not found at %s. "+
			"Either create it or set Krb5Conf. Example minimal configuration:\n%s",
			cfg.Krb5Conf, exampleKrb5Conf(cfg.Realm))
	}

	conf, err := krb5config.NewFromString(runtimeKrb5Conf(cfg.Realm))
	if err != nil {
		return nil, fmt.Errorf("failed to generate Kerberos configuration: %w", err)
	}
	return conf, nil
}

// runtimeKrb5Conf returns a krb5.conf that locates KDCs through DNS.
func runtimeKrb5Conf(realm string) string {
	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false
    forwardable = true
    ticket_lifetime = 24h
    renew_lifetime = 7d

[realms]
    %s = {
    }

[domain_realm]
    .%s = %s
    %s = %s
`,
		realm,
		realm,
		domain, realm,
		domain, realm,
	)
}

// credentialCachePath returns cfg.CCache or the default credential cache.
func credentialCachePath(cfg KerberosConfig) string {
	if cfg.CCache != "" {
		return cfg.CCache
	}
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// keytabPath returns cfg.Keytab or the default keytab.
func keytabPath(cfg KerberosConfig) string {
	if cfg.Keytab != "" {
		return cfg.Keytab
	}
	if kt := os.Getenv("KRB5_KTNAME"); kt != "" {
		return strings.TrimPrefix(kt, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// ServicePrincipal returns the SPN to bind with: cfg.SPN when set, otherwise
// ldap/<host> for the host in serverURL.
func ServicePrincipal(cfg KerberosConfig, serverURL string) (string, error) {
	if cfg.SPN != "" {
		return cfg.SPN, nil
	}

	if serverURL == "" {
		return "", errors.New("LDAP URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid LDAP URL: %w", err)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("no hostname found in URL: %s", serverURL)
	}

	return "ldap/" + hostname, nil
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// exampleKrb5Conf generates example krb5.conf content for error messages.
func exampleKrb5Conf(realm string) string {
	if realm == "" {
		return "[libdefaults]\n    default_realm = YOUR.REALM.COM\n\n[realms]\n    YOUR.REALM.COM = {\n        kdc = your-dc.realm.com:88\n    }"
	}

	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)
	kdcHost := "dc." + domain

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_realm = false
    dns_lookup_kdc = false

[realms]
    %s = {
        kdc = %s:88
        admin_server = %s:749
    }

[domain_realm]
    .%s = %s
    %s = %s`,
		realm,
		realm,
		kdcHost, kdcHost,
		domain, realm,
		domain, realm)
}
