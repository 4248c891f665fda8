package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

const (
	// subsystemLDAP is the tflog subsystem used for all client logging.
	subsystemLDAP = "ldap"

	// EnvLogLevel sets the level of the ldap log subsystem.
	EnvLogLevel = "LDAPASYNC_LOG_LEVEL"
)

// newLoggingContext derives a context carrying the ldap subsystem logger.
func newLoggingContext(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, subsystemLDAP, tflog.WithLevelFromEnv(EnvLogLevel))
}

// logOperationStart logs the beginning of a forwarded call and returns a
// function that logs its outcome.
func logOperationStart(ctx context.Context, operation, id string, fields map[string]any) func(error) {
	start := time.Now()

	entryFields := SanitizeFields(fields)
	entryFields["operation"] = operation
	entryFields["call_id"] = id

	tflog.SubsystemDebug(ctx, subsystemLDAP, "Starting operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any, len(entryFields)+2)
		maps.Copy(exitFields, entryFields)
		exitFields["duration_ms"] = time.Since(start).Milliseconds()

		if err != nil {
			LogLDAPError(ctx, subsystemLDAP, operation, err, exitFields)
			return
		}
		tflog.SubsystemDebug(ctx, subsystemLDAP, "Operation completed successfully", exitFields)
	}
}

// LogLDAPError logs LDAP-specific error information.
func LogLDAPError(ctx context.Context, subsystem string, operation string, err error, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["error"] = err.Error()

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		fields["ldap_result_code"] = ldapErr.ResultCode
		if ldapErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = ldapErr.MatchedDN
		}
		if ldapErr.Err != nil {
			fields["ldap_diagnostic_message"] = ldapErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", fields)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(ctx context.Context, event EventType, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = string(event)

	switch event {
	case EventConnect:
		tflog.SubsystemInfo(ctx, subsystemLDAP, "Connection event", fields)
	case EventConnectError:
		tflog.SubsystemError(ctx, subsystemLDAP, "Connection event", fields)
	default:
		tflog.SubsystemDebug(ctx, subsystemLDAP, "Connection event", fields)
	}
}

// SanitizeFields returns a copy of fields with sensitive values redacted.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":     true,
		"passwd":       true,
		"new_password": true,
		"old_password": true,
		"secret":       true,
		"token":        true,
		"credential":   true,
		"credentials":  true,
	}

	for k, v := range fields {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
