package llmproxy

import (
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/vars"
)

type ModelName string

func (Module) ModelName(
	loader configs.Loader,
) ModelName {
	return vars.FirstNonZero(
		configs.First[ModelName](loader, "llm_model"),
		"models/gemini-2.0-flash",
	)
}

type BaseURL string

func (Module) BaseURL(
	loader configs.Loader,
) BaseURL {
	return vars.FirstNonZero(
		configs.First[BaseURL](loader, "llm_base_url"),
		generators.DefaultGeminiBaseURL,
	)
}
