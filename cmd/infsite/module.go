package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/servers"
	"github.com/reusee/infsite/siteconfigs"
	"github.com/reusee/infsite/telemetry"
)

type Module struct {
	dscope.Module
	Servers   servers.Module
	Configs   siteconfigs.Module
	Telemetry telemetry.Module
}
