package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/automation"
	"github.com/smallbiznis/invoicerecovery/internal/behavior"
	"github.com/smallbiznis/invoicerecovery/internal/client"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"github.com/smallbiznis/invoicerecovery/internal/invoice"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	"github.com/smallbiznis/invoicerecovery/internal/observability"
	"github.com/smallbiznis/invoicerecovery/internal/providers"
	"github.com/smallbiznis/invoicerecovery/internal/scheduler"
	"github.com/smallbiznis/invoicerecovery/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		providers.Module,

		// Domain services required by the dispatcher
		client.Module,
		invoice.Module,
		behavior.Module,
		automation.Module,

		// No server module!
		scheduler.Module,
		scheduler.RunModule,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
