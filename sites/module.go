package sites

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/storages"
)

type Module struct {
	dscope.Module
	Configs    configs.Module
	Generators generators.Module
	Storages   storages.Module
	Logs       logs.Module
}
