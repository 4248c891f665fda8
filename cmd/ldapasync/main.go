package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/hashicorp/terraform-plugin-log/tfsdklog"

	"github.com/isometry/ldapasync/internal/cli"
)

func main() {
	ctx := tfsdklog.NewRootProviderLogger(context.Background(),
		tfsdklog.WithLogName("ldapasync"),
		tfsdklog.WithLevel(cli.RootLogLevel()),
		tfsdklog.WithoutLocation(),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
