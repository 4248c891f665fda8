package ldap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of the go-ldap connection API that Client forwards to.
// *ldap.Conn from github.com/go-ldap/ldap/v3 satisfies it.
type Conn interface {
	SimpleBind(req *ldap.SimpleBindRequest) (*ldap.SimpleBindResult, error)
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	ExternalBind() error
	Unbind() error
	StartTLS(config *tls.Config) error

	Add(req *ldap.AddRequest) error
	Del(req *ldap.DelRequest) error
	Modify(req *ldap.ModifyRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Compare(dn, attribute, value string) (bool, error)
	PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
	WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error)

	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	SearchAsync(ctx context.Context, req *ldap.SearchRequest, bufferSize int) ldap.Response

	SetTimeout(timeout time.Duration)
	IsClosing() bool
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// DialFunc opens a connection to url. The default is go-ldap's DialURL.
type DialFunc func(url string, opts ...ldap.DialOpt) (Conn, error)

func dialURL(url string, opts ...ldap.DialOpt) (Conn, error) {
	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
