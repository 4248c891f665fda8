package ldap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"
)

// MockConn implements the Conn interface for testing.
type MockConn struct {
	mock.Mock
}

func (m *MockConn) SimpleBind(req *ldap.SimpleBindRequest) (*ldap.SimpleBindResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.SimpleBindResult)
	return result, args.Error(1)
}

func (m *MockConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error {
	args := m.Called(client, servicePrincipal, authzid)
	return args.Error(0)
}

func (m *MockConn) ExternalBind() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) Unbind() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) StartTLS(config *tls.Config) error {
	args := m.Called(config)
	return args.Error(0)
}

func (m *MockConn) Add(req *ldap.AddRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) Del(req *ldap.DelRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) Modify(req *ldap.ModifyRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) ModifyDN(req *ldap.ModifyDNRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) Compare(dn, attribute, value string) (bool, error) {
	args := m.Called(dn, attribute, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockConn) PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.PasswordModifyResult)
	return result, args.Error(1)
}

func (m *MockConn) WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error) {
	args := m.Called(controls)
	result, _ := args.Get(0).(*ldap.WhoAmIResult)
	return result, args.Error(1)
}

func (m *MockConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockConn) SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error) {
	args := m.Called(req, pagingSize)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockConn) SearchAsync(ctx context.Context, req *ldap.SearchRequest, bufferSize int) ldap.Response {
	args := m.Called(ctx, req, bufferSize)
	response, _ := args.Get(0).(ldap.Response)
	return response
}

func (m *MockConn) SetTimeout(timeout time.Duration) {
	m.Called(timeout)
}

func (m *MockConn) IsClosing() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// newTestClient wraps conn in a client using the test's context.
func newTestClient(ctx context.Context, conn Conn) *Client {
	return NewWithConn(ctx, conn, &Options{URL: "ldap://dc1.example.com:389"})
}

func testSearchRequest() *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		"dc=example,dc=com",
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=person)",
		[]string{"cn", "mail"},
		nil,
	)
}
