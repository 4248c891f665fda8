package cli

import (
	"context"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapasync/ldap"
)

const (
	subsystemCLI = "cli"

	// EnvCLILogLevel sets the level of the cli log subsystem.
	EnvCLILogLevel = "LDAPASYNC_LOG_LEVEL_CLI"
)

// RootLogLevel returns the level for the root logger, taken from the ldap
// log level variable. Without it only warnings and errors are shown.
func RootLogLevel() hclog.Level {
	level := hclog.LevelFromString(os.Getenv(ldap.EnvLogLevel))
	if level == hclog.NoLevel {
		return hclog.Warn
	}
	return level
}

// initializeLogging initializes the cli subsystem for command logging.
func initializeLogging(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, subsystemCLI, tflog.WithLevelFromEnv(EnvCLILogLevel))
}
