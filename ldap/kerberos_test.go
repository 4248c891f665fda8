package ldap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareKerberosConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("KRB5CCNAME", filepath.Join(tempDir, "no-default-ccache"))
	t.Setenv("KRB5_KTNAME", "FILE:"+filepath.Join(tempDir, "no-default.keytab"))

	testKeytab := filepath.Join(tempDir, "test.keytab")
	testCCache := filepath.Join(tempDir, "krb5cc")
	for _, file := range []string{testKeytab, testCCache} {
		require.NoError(t, os.WriteFile(file, nil, 0o600))
	}

	tests := []struct {
		name     string
		cfg      KerberosConfig
		errorMsg string
		expected KerberosConfig
	}{
		{
			name: "realm from username",
			cfg:  KerberosConfig{Username: "svc-ldap@EXAMPLE.COM", Password: "secret"},
			expected: KerberosConfig{
				Username: "svc-ldap",
				Realm:    "EXAMPLE.COM",
				Password: "secret",
				Krb5Conf: DefaultKrb5Conf,
			},
		},
		{
			name: "explicit realm keeps username",
			cfg:  KerberosConfig{Username: "svc-ldap", Realm: "EXAMPLE.COM", Keytab: testKeytab, Krb5Conf: "/opt/krb5.conf"},
			expected: KerberosConfig{
				Username: "svc-ldap",
				Realm:    "EXAMPLE.COM",
				Keytab:   testKeytab,
				Krb5Conf: "/opt/krb5.conf",
			},
		},
		{
			name: "ccache without username",
			cfg:  KerberosConfig{Realm: "EXAMPLE.COM", CCache: testCCache},
			expected: KerberosConfig{
				Realm:    "EXAMPLE.COM",
				CCache:   testCCache,
				Krb5Conf: DefaultKrb5Conf,
			},
		},
		{
			name:     "missing realm",
			cfg:      KerberosConfig{Username: "svc-ldap", Password: "secret"},
			errorMsg: "kerberos realm is required",
		},
		{
			name:     "missing username",
			cfg:      KerberosConfig{Realm: "EXAMPLE.COM", Password: "secret"},
			errorMsg: "username (principal) is required",
		},
		{
			name:     "no credentials",
			cfg:      KerberosConfig{Username: "svc-ldap", Realm: "EXAMPLE.COM", Keytab: filepath.Join(tempDir, "missing.keytab")},
			errorMsg: "no suitable Kerberos credentials found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := prepareKerberosConfig(tt.cfg)

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNewGSSAPIClient_MissingKrb5Conf(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "krb5.conf")
	t.Setenv("KRB5CCNAME", missing+".ccache")
	t.Setenv("KRB5_KTNAME", missing+".keytab")

	_, err := NewGSSAPIClient(KerberosConfig{
		Username: "svc-ldap@example.com",
		Password: "secret",
		Krb5Conf: missing,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kerberos configuration file not found at "+missing)
	assert.Contains(t, err.Error(), "default_realm = EXAMPLE.COM")
	assert.Contains(t, err.Error(), "kdc = dc.example.com:88")
}

func TestLoadKrb5Conf_Runtime(t *testing.T) {
	cfg := KerberosConfig{Realm: "example.com", Krb5Conf: filepath.Join(t.TempDir(), "krb5.conf")}

	conf, err := loadKrb5Conf(cfg, false)

	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE.COM", conf.LibDefaults.DefaultRealm)
	assert.True(t, conf.LibDefaults.DNSLookupKDC)
	assert.False(t, conf.LibDefaults.DNSLookupRealm)
}

func TestLoadKrb5Conf_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krb5.conf")
	require.NoError(t, os.WriteFile(path, []byte(exampleKrb5Conf("corp.example.com")), 0o600))

	conf, err := loadKrb5Conf(KerberosConfig{Realm: "CORP.EXAMPLE.COM", Krb5Conf: path}, true)

	require.NoError(t, err)
	assert.Equal(t, "CORP.EXAMPLE.COM", conf.LibDefaults.DefaultRealm)
	require.Len(t, conf.Realms, 1)
	assert.Equal(t, []string{"dc.corp.example.com:88"}, conf.Realms[0].KDC)
}

func TestDefaultCredentialPaths(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/run/user/1000/krb5cc")
	t.Setenv("KRB5_KTNAME", "/etc/service.keytab")

	assert.Equal(t, "/run/user/1000/krb5cc", credentialCachePath(KerberosConfig{}))
	assert.Equal(t, "/etc/service.keytab", keytabPath(KerberosConfig{}))
	assert.Equal(t, "/explicit", credentialCachePath(KerberosConfig{CCache: "/explicit"}))
	assert.Equal(t, "/explicit.keytab", keytabPath(KerberosConfig{Keytab: "/explicit.keytab"}))
}

func TestNewGSSAPIClient_InvalidConfig(t *testing.T) {
	t.Setenv("KRB5CCNAME", filepath.Join(t.TempDir(), "ccache"))
	_, err := NewGSSAPIClient(KerberosConfig{Username: "svc-ldap"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos configuration error")
}

func TestServicePrincipal(t *testing.T) {
	tests := []struct {
		name      string
		cfg       KerberosConfig
		serverURL string
		want      string
		wantErr   bool
	}{
		{
			name:      "derived from url",
			serverURL: "ldaps://dc1.example.com:636",
			want:      "ldap/dc1.example.com",
		},
		{
			name:      "override",
			cfg:       KerberosConfig{SPN: "ldap/dc.example.com@EXAMPLE.COM"},
			serverURL: "ldap://10.0.0.1",
			want:      "ldap/dc.example.com@EXAMPLE.COM",
		},
		{
			name:    "empty url",
			wantErr: true,
		},
		{
			name:      "no hostname",
			serverURL: "ldap://",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServicePrincipal(tt.cfg, tt.serverURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
