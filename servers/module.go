package servers

import (
	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/llmproxy"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/sites"
)

type Module struct {
	dscope.Module
	Configs  configs.Module
	Logs     logs.Module
	Sites    sites.Module
	LLMProxy llmproxy.Module
}
