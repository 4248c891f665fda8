package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// srvResolver is the subset of *net.Resolver used for discovery.
type srvResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// server is a directory server found for a domain.
type server struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string
}

// URL returns the ldap:// or ldaps:// URL of s.
func (s server) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Host, fmt.Sprint(s.Port)))
}

// discoverServers looks up the domain's directory servers, in order:
// _ldaps._tcp, _ldap._tcp, then _gc._tcp. LDAPS records end the search.
// Without any records the domain itself is returned on ports 636 and 389.
func discoverServers(ctx context.Context, resolver srvResolver, domain string) ([]server, error) {
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}

	start := time.Now()
	tflog.SubsystemDebug(ctx, subsystemCLI, "Starting server discovery for domain", map[string]any{
		"domain": domain,
	})

	services := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
		{"_gc._tcp." + domain, false},
	}

	var servers []server
	for _, svc := range services {
		found, err := lookupServers(ctx, resolver, svc.name, svc.useTLS)
		if err != nil {
			tflog.SubsystemDebug(ctx, subsystemCLI, "SRV lookup failed, continuing to next service", map[string]any{
				"service": svc.name,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, found...)

		if svc.useTLS {
			break
		}
	}

	if len(servers) == 0 {
		tflog.SubsystemDebug(ctx, subsystemCLI, "No SRV records found, using fallback servers", map[string]any{
			"domain": domain,
		})
		return []server{
			{Host: domain, Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
			{Host: domain, Port: 389, Priority: 1, Weight: 100, Source: "fallback"},
		}, nil
	}

	// RFC 2782: ascending priority, heavier weight first within a priority.
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})

	tflog.SubsystemDebug(ctx, subsystemCLI, "Server discovery completed", map[string]any{
		"duration":     time.Since(start).String(),
		"server_count": len(servers),
	})
	return servers, nil
}

func lookupServers(ctx context.Context, resolver srvResolver, service string, useTLS bool) ([]server, error) {
	_, records, err := resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]server, 0, len(records))
	for _, srv := range records {
		servers = append(servers, server{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}
