package ldap

import (
	"context"
	"crypto/tls"
	"maps"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// forwardControls passes controls through unchanged, with an empty list
// forwarded as nil.
func forwardControls(controls []ldap.Control) []ldap.Control {
	if len(controls) == 0 {
		return nil
	}
	return controls
}

// BindAsync performs a simple bind.
func (c *Client) BindAsync(dn, password string, controls ...ldap.Control) *Future[*ldap.SimpleBindResult] {
	req := &ldap.SimpleBindRequest{
		Username: dn,
		Password: password,
		Controls: forwardControls(controls),
	}
	return run(c, "bind", map[string]any{"dn": dn, "password": password, "controls": len(controls)},
		func(conn Conn) (*ldap.SimpleBindResult, error) {
			return conn.SimpleBind(req)
		})
}

// Bind performs a simple bind and waits for the result.
func (c *Client) Bind(ctx context.Context, dn, password string, controls ...ldap.Control) (*ldap.SimpleBindResult, error) {
	return c.BindAsync(dn, password, controls...).Await(ctx)
}

// GSSAPIBindAsync performs a SASL GSSAPI bind with the given Kerberos client.
func (c *Client) GSSAPIBindAsync(client ldap.GSSAPIClient, servicePrincipal, authzid string) *Future[struct{}] {
	return runVoid(c, "gssapi_bind", map[string]any{"spn": servicePrincipal, "authzid": authzid},
		func(conn Conn) error {
			return conn.GSSAPIBind(client, servicePrincipal, authzid)
		})
}

// GSSAPIBind performs a SASL GSSAPI bind and waits for the result.
func (c *Client) GSSAPIBind(ctx context.Context, client ldap.GSSAPIClient, servicePrincipal, authzid string) error {
	_, err := c.GSSAPIBindAsync(client, servicePrincipal, authzid).Await(ctx)
	return err
}

// ExternalBindAsync performs a SASL EXTERNAL bind.
func (c *Client) ExternalBindAsync() *Future[struct{}] {
	return runVoid(c, "external_bind", nil, func(conn Conn) error {
		return conn.ExternalBind()
	})
}

// ExternalBind performs a SASL EXTERNAL bind and waits for the result.
func (c *Client) ExternalBind(ctx context.Context) error {
	_, err := c.ExternalBindAsync().Await(ctx)
	return err
}

// AddAsync adds an entry with the given attributes.
func (c *Client) AddAsync(dn string, attributes map[string][]string, controls ...ldap.Control) *Future[struct{}] {
	req := ldap.NewAddRequest(dn, forwardControls(controls))
	for _, name := range slices.Sorted(maps.Keys(attributes)) {
		req.Attribute(name, attributes[name])
	}
	return c.AddRequestAsync(req)
}

// Add adds an entry and waits for the result.
func (c *Client) Add(ctx context.Context, dn string, attributes map[string][]string, controls ...ldap.Control) error {
	_, err := c.AddAsync(dn, attributes, controls...).Await(ctx)
	return err
}

// AddRequestAsync forwards a prepared add request.
func (c *Client) AddRequestAsync(req *ldap.AddRequest) *Future[struct{}] {
	return runVoid(c, "add", map[string]any{"dn": req.DN, "attributes": len(req.Attributes)},
		func(conn Conn) error {
			return conn.Add(req)
		})
}

// AddRequest forwards a prepared add request and waits for the result.
func (c *Client) AddRequest(ctx context.Context, req *ldap.AddRequest) error {
	_, err := c.AddRequestAsync(req).Await(ctx)
	return err
}

// CompareAsync compares an attribute value of an entry. It resolves true
// when the value matches.
func (c *Client) CompareAsync(dn, attribute, value string) *Future[bool] {
	return run(c, "compare", map[string]any{"dn": dn, "attribute": attribute},
		func(conn Conn) (bool, error) {
			return conn.Compare(dn, attribute, value)
		})
}

// Compare compares an attribute value and waits for the result.
func (c *Client) Compare(ctx context.Context, dn, attribute, value string) (bool, error) {
	return c.CompareAsync(dn, attribute, value).Await(ctx)
}

// DelAsync deletes an entry.
func (c *Client) DelAsync(dn string, controls ...ldap.Control) *Future[struct{}] {
	req := ldap.NewDelRequest(dn, forwardControls(controls))
	return runVoid(c, "delete", map[string]any{"dn": dn, "controls": len(controls)},
		func(conn Conn) error {
			return conn.Del(req)
		})
}

// Del deletes an entry and waits for the result.
func (c *Client) Del(ctx context.Context, dn string, controls ...ldap.Control) error {
	_, err := c.DelAsync(dn, controls...).Await(ctx)
	return err
}

// ModifyAsync applies changes to an entry.
func (c *Client) ModifyAsync(dn string, changes []ldap.Change, controls ...ldap.Control) *Future[struct{}] {
	return c.ModifyRequestAsync(&ldap.ModifyRequest{
		DN:       dn,
		Changes:  changes,
		Controls: forwardControls(controls),
	})
}

// Modify applies changes to an entry and waits for the result.
func (c *Client) Modify(ctx context.Context, dn string, changes []ldap.Change, controls ...ldap.Control) error {
	_, err := c.ModifyAsync(dn, changes, controls...).Await(ctx)
	return err
}

// ModifyRequestAsync forwards a prepared modify request.
func (c *Client) ModifyRequestAsync(req *ldap.ModifyRequest) *Future[struct{}] {
	return runVoid(c, "modify", map[string]any{"dn": req.DN, "changes": len(req.Changes)},
		func(conn Conn) error {
			return conn.Modify(req)
		})
}

// ModifyRequest forwards a prepared modify request and waits for the result.
func (c *Client) ModifyRequest(ctx context.Context, req *ldap.ModifyRequest) error {
	_, err := c.ModifyRequestAsync(req).Await(ctx)
	return err
}

// ModifyDNAsync forwards a prepared modify DN request.
func (c *Client) ModifyDNAsync(req *ldap.ModifyDNRequest) *Future[struct{}] {
	return runVoid(c, "modify_dn", map[string]any{
		"dn":           req.DN,
		"new_rdn":      req.NewRDN,
		"new_superior": req.NewSuperior,
	}, func(conn Conn) error {
		return conn.ModifyDN(req)
	})
}

// ModifyDN forwards a prepared modify DN request and waits for the result.
func (c *Client) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) error {
	_, err := c.ModifyDNAsync(req).Await(ctx)
	return err
}

// RenameAsync moves dn to newDN. The remainder of newDN after its first RDN
// becomes the new superior unless it names the entry's current parent, in
// which case the entry is renamed in place. The old RDN value is always
// deleted.
func (c *Client) RenameAsync(dn, newDN string, controls ...ldap.Control) *Future[struct{}] {
	parsed, err := ldap.ParseDN(newDN)
	if err != nil {
		return Rejected[struct{}](err)
	}
	if len(parsed.RDNs) == 0 {
		return Rejected[struct{}](ldap.NewError(ldap.LDAPResultInvalidDNSyntax, ErrEmptyDN))
	}

	rdn, superior := splitRDN(newDN)
	if _, parent := splitRDN(dn); sameDN(parent, superior) {
		superior = ""
	}
	return c.ModifyDNAsync(&ldap.ModifyDNRequest{
		DN:           dn,
		NewRDN:       rdn,
		DeleteOldRDN: true,
		NewSuperior:  superior,
		Controls:     forwardControls(controls),
	})
}

// Rename moves dn to newDN and waits for the result.
func (c *Client) Rename(ctx context.Context, dn, newDN string, controls ...ldap.Control) error {
	_, err := c.RenameAsync(dn, newDN, controls...).Await(ctx)
	return err
}

// sameDN reports whether a and b name the same entry under
// distinguishedNameMatch. Unparsable DNs never match.
func sameDN(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	da, err := ldap.ParseDN(a)
	if err != nil {
		return false
	}
	db, err := ldap.ParseDN(b)
	if err != nil {
		return false
	}
	return da.EqualFold(db)
}

// splitRDN splits a DN at its first unescaped comma.
func splitRDN(dn string) (rdn, parent string) {
	escaped := false
	for i, r := range dn {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			return strings.TrimSpace(dn[:i]), strings.TrimSpace(dn[i+1:])
		}
	}
	return strings.TrimSpace(dn), ""
}

func searchFields(req *ldap.SearchRequest) map[string]any {
	return map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      ldap.ScopeMap[req.Scope],
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
		"time_limit": req.TimeLimit,
		"controls":   len(req.Controls),
	}
}

// SearchAsync performs a search and resolves with the complete result.
func (c *Client) SearchAsync(req *ldap.SearchRequest) *Future[*ldap.SearchResult] {
	return run(c, "search", searchFields(req), func(conn Conn) (*ldap.SearchResult, error) {
		return conn.Search(req)
	})
}

// Search performs a search and waits for the result.
func (c *Client) Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.SearchAsync(req).Await(ctx)
}

// SearchWithPagingAsync performs a search using the simple paged results
// control, collecting every page.
func (c *Client) SearchWithPagingAsync(req *ldap.SearchRequest, pageSize uint32) *Future[*ldap.SearchResult] {
	fields := searchFields(req)
	fields["page_size"] = pageSize
	return run(c, "search_paged", fields, func(conn Conn) (*ldap.SearchResult, error) {
		return conn.SearchWithPaging(req, pageSize)
	})
}

// SearchWithPaging performs a paged search and waits for the result.
func (c *Client) SearchWithPaging(ctx context.Context, req *ldap.SearchRequest, pageSize uint32) (*ldap.SearchResult, error) {
	return c.SearchWithPagingAsync(req, pageSize).Await(ctx)
}

// SearchStream starts a search whose entries are delivered as they arrive.
// Cancelling ctx abandons the search. The returned response is go-ldap's own;
// stream progress is logged but not reported as events.
func (c *Client) SearchStream(ctx context.Context, req *ldap.SearchRequest, bufferSize int) ldap.Response {
	conn := c.currentConn()
	if conn == nil {
		return &errResponse{err: ErrNotConnected}
	}

	fields := searchFields(req)
	fields["operation"] = "search_stream"
	fields["buffer_size"] = bufferSize
	tflog.SubsystemDebug(c.logContext, subsystemLDAP, "Starting streaming search", fields)

	return conn.SearchAsync(ctx, req, bufferSize)
}

// errResponse is a search response that ends immediately with err.
type errResponse struct {
	ldap.Response
	err error
}

func (r *errResponse) Entry() *ldap.Entry { return nil }
func (r *errResponse) Referral() string { return "" }
func (r *errResponse) Controls() []ldap.Control { return nil }
func (r *errResponse) Err() error { return r.err }
func (r *errResponse) Next() bool { return false }

// StartTLSAsync upgrades the connection to TLS. A nil config uses the
// client's TLS configuration.
func (c *Client) StartTLSAsync(config *tls.Config) *Future[struct{}] {
	if config == nil {
		config = c.opts.TLSConfig
	}
	return runVoid(c, "starttls", map[string]any{"server_name": config.ServerName}, func(conn Conn) error {
		return conn.StartTLS(config)
	})
}

// StartTLS upgrades the connection to TLS and waits for the result.
func (c *Client) StartTLS(ctx context.Context, config *tls.Config) error {
	_, err := c.StartTLSAsync(config).Await(ctx)
	return err
}

// PasswordModifyAsync performs the password modify extended operation.
func (c *Client) PasswordModifyAsync(req *ldap.PasswordModifyRequest) *Future[*ldap.PasswordModifyResult] {
	return run(c, "password_modify", map[string]any{
		"user_identity": req.UserIdentity,
		"old_password":  req.OldPassword,
		"new_password":  req.NewPassword,
	}, func(conn Conn) (*ldap.PasswordModifyResult, error) {
		return conn.PasswordModify(req)
	})
}

// PasswordModify performs the password modify extended operation and waits
// for the result.
func (c *Client) PasswordModify(ctx context.Context, req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
	return c.PasswordModifyAsync(req).Await(ctx)
}

// WhoAmIAsync performs the "Who Am I?" extended operation.
func (c *Client) WhoAmIAsync(controls ...ldap.Control) *Future[*ldap.WhoAmIResult] {
	return run(c, "whoami", map[string]any{"controls": len(controls)}, func(conn Conn) (*ldap.WhoAmIResult, error) {
		return conn.WhoAmI(forwardControls(controls))
	})
}

// WhoAmI performs the "Who Am I?" extended operation and waits for the result.
func (c *Client) WhoAmI(ctx context.Context, controls ...ldap.Control) (*ldap.WhoAmIResult, error) {
	return c.WhoAmIAsync(controls...).Await(ctx)
}

// UnbindAsync sends an unbind request, after which the server closes the
// connection.
func (c *Client) UnbindAsync() *Future[struct{}] {
	return runVoid(c, "unbind", nil, func(conn Conn) error {
		return conn.Unbind()
	})
}

// Unbind sends an unbind request and waits for it to complete.
func (c *Client) Unbind(ctx context.Context) error {
	_, err := c.UnbindAsync().Await(ctx)
	return err
}
