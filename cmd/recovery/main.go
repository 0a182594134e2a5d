package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/assistant"
	"github.com/smallbiznis/invoicerecovery/internal/automation"
	"github.com/smallbiznis/invoicerecovery/internal/behavior"
	"github.com/smallbiznis/invoicerecovery/internal/client"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"github.com/smallbiznis/invoicerecovery/internal/ingestion"
	"github.com/smallbiznis/invoicerecovery/internal/invoice"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	"github.com/smallbiznis/invoicerecovery/internal/migration"
	"github.com/smallbiznis/invoicerecovery/internal/observability"
	"github.com/smallbiznis/invoicerecovery/internal/providers"
	"github.com/smallbiznis/invoicerecovery/internal/ratelimit"
	"github.com/smallbiznis/invoicerecovery/internal/scheduler"
	"github.com/smallbiznis/invoicerecovery/internal/server"
	"github.com/smallbiznis/invoicerecovery/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		providers.Module,

		// Functional Domains
		client.Module,
		invoice.Module,
		behavior.Module,
		automation.Module,
		ingestion.Module,
		assistant.Module,
		scheduler.Module,
		scheduler.RunModule,

		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
