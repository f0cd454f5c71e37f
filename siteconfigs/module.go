package siteconfigs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/logs"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}
