package llmproxy

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
)

type Module struct {
	dscope.Module
	Configs    configs.Module
	Generators generators.Module
	Logs       logs.Module
}
