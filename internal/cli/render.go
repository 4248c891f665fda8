package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/go-objectsid"
	goldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// entryDocument is the YAML form of a search entry.
type entryDocument struct {
	DN         string              `yaml:"dn"`
	Attributes map[string][]string `yaml:"attributes,omitempty"`
}

func renderEntries(entries []*goldap.Entry) []entryDocument {
	docs := make([]entryDocument, 0, len(entries))
	for _, entry := range entries {
		doc := entryDocument{DN: entry.DN}
		if len(entry.Attributes) > 0 {
			doc.Attributes = make(map[string][]string, len(entry.Attributes))
		}
		for _, attr := range entry.Attributes {
			doc.Attributes[attr.Name] = renderValues(attr)
		}
		docs = append(docs, doc)
	}
	return docs
}

// renderValues returns printable attribute values. Active Directory SIDs and
// GUIDs are decoded to their string forms and other binary values are base64
// encoded.
func renderValues(attr *goldap.EntryAttribute) []string {
	values := make([]string, 0, len(attr.ByteValues))
	for _, raw := range attr.ByteValues {
		values = append(values, renderValue(attr.Name, raw))
	}
	return values
}

func renderValue(name string, raw []byte) string {
	switch strings.ToLower(name) {
	case "objectsid":
		if len(raw) >= 8 && len(raw) == 8+4*int(raw[1]) {
			return objectsid.Decode(raw).String()
		}
	case "objectguid":
		if guid, err := guidString(raw); err == nil {
			return guid
		}
	}

	if printable(raw) {
		return string(raw)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// printable reports whether raw is UTF-8 text without control characters
// other than whitespace.
func printable(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	for _, r := range string(raw) {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// guidString converts an Active Directory GUID from its mixed-endian wire
// form to the canonical string.
func guidString(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("invalid GUID byte length: expected 16, got %d", len(raw))
	}

	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = raw[3], raw[2], raw[1], raw[0]
	b[4], b[5] = raw[5], raw[4]
	b[6], b[7] = raw[7], raw[6]
	copy(b[8:], raw[8:])

	id, err := uuid.FromBytes(b)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// authzDocument is the YAML form of a "Who Am I?" result.
type authzDocument struct {
	AuthzID           string `yaml:"authz_id"`
	Format            string `yaml:"format"`
	DN                string `yaml:"dn,omitempty"`
	UserPrincipalName string `yaml:"upn,omitempty"`
	SAMAccountName    string `yaml:"sam_account_name,omitempty"`
	SID               string `yaml:"sid,omitempty"`
}

var (
	dnPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*=`)
	sidPattern = regexp.MustCompile(`^S-\d+-\d+-\d+(-\d+)*$`)
)

// parseAuthzID classifies an authorization ID (RFC 4513 "dn:" or "u:" form).
func parseAuthzID(authzID string) authzDocument {
	doc := authzDocument{AuthzID: authzID}

	if authzID == "" {
		doc.Format = "empty"
		return doc
	}

	if dn, ok := strings.CutPrefix(authzID, "dn:"); ok {
		doc.Format = "dn"
		doc.DN = dn
		return doc
	}

	id := strings.TrimPrefix(authzID, "u:")
	switch {
	case dnPattern.MatchString(id):
		doc.Format = "dn"
		doc.DN = id
	case strings.Contains(id, "@") && !strings.Contains(id, `\`):
		doc.Format = "upn"
		doc.UserPrincipalName = id
	case strings.Contains(id, `\`):
		doc.Format = "sam"
		doc.SAMAccountName = id
	case sidPattern.MatchString(id):
		doc.Format = "sid"
		doc.SID = id
	default:
		doc.Format = "unknown"
	}
	return doc
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
