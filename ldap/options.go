package ldap

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvURL            = "LDAP_URL"
	EnvTimeout        = "LDAP_TIMEOUT"
	EnvConnectTimeout = "LDAP_CONNECT_TIMEOUT"
	EnvSkipTLSVerify  = "LDAP_SKIP_TLS_VERIFY"
)

// Options configures how a Client dials its connection. Everything past the
// dial is the wrapped library's business.
type Options struct {
	// URL of the directory server, ldap:// or ldaps://.
	URL string `default:"ldap://localhost:389"`

	// TLSConfig is used for ldaps:// URLs and as the StartTLS default.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables certificate verification on the default
	// TLS configuration. It has no effect when TLSConfig is set.
	InsecureSkipVerify bool

	// Timeout is applied to every request on the connection.
	Timeout time.Duration `default:"30s"`

	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration `default:"10s"`

	// Dial opens the connection. Nil uses go-ldap's DialURL.
	Dial DialFunc
}

// DefaultOptions returns options with defaults applied.
func DefaultOptions() *Options {
	opts := &Options{}
	// The default tags are constants valid for their field types, so
	// applying them to a zero Options cannot fail.
	_ = opts.applyDefaults()
	return opts
}

// applyDefaults fills unset fields from their default tags and builds the
// default TLS configuration.
func (o *Options) applyDefaults() error {
	if err := defaults.Set(o); err != nil {
		return fmt.Errorf("failed to set default values: %w", err)
	}

	if o.TLSConfig == nil {
		o.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec // opt-in only
		}
	}

	return nil
}

// OptionsFromEnv returns default options overlaid with LDAP_* environment
// variables. Malformed values are reported rather than ignored.
func OptionsFromEnv() (*Options, error) {
	opts := &Options{
		URL: os.Getenv(EnvURL),
	}

	var err error
	if opts.Timeout, err = durationFromEnv(EnvTimeout); err != nil {
		return nil, err
	}
	if opts.ConnectTimeout, err = durationFromEnv(EnvConnectTimeout); err != nil {
		return nil, err
	}
	if opts.InsecureSkipVerify, err = boolFromEnv(EnvSkipTLSVerify, false); err != nil {
		return nil, err
	}

	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	return opts, nil
}

// durationFromEnv accepts Go duration strings or a bare number of seconds.
func durationFromEnv(envVar string) (time.Duration, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envVar, v, err)
	}
	return d, nil
}

func boolFromEnv(envVar string, defaultValue bool) (bool, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", envVar, v, err)
	}
	return parsed, nil
}
