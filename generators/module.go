package generators

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/nets"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Nets    nets.Module
	Logs    logs.Module
}
