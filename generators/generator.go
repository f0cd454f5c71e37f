package generators

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// Generator streams the text a model writes for a single prompt.
// A yielded error ends the stream unless it is a *MalformedChunkError.
type Generator interface {
	Args() GeneratorArgs
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type GetGenerator func(name string) (Generator, error)

func (Module) GetGenerator(
	newGemini NewGemini,
	newGeminiSSE NewGeminiSSE,
	getSpecs GetGeneratorSpecs,
) GetGenerator {
	return func(name string) (Generator, error) {

		// user-defined first
		specs, err := getSpecs()
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if spec.Name != name {
				continue
			}
			switch strings.ToLower(spec.Type) {
			case "gemini":
				return newGemini(spec.GeneratorArgs), nil
			case "gemini-sse", "gemini_sse":
				return newGeminiSSE(spec.GeneratorArgs), nil
			default:
				return nil, fmt.Errorf("unknown generator type: %q", spec.Type)
			}
		}

		// rest endpoint
		provider, modelName, ok := strings.Cut(name, ":")
		if ok && provider == "sse" {
			return newGeminiSSE(GeneratorArgs{
				Model: modelPath(modelName),
			}), nil
		}

		// built-ins
		switch name {

		case "flash", "gemini-flash":
			return newGemini(GeneratorArgs{
				Model: "models/gemini-2.5-flash",
			}), nil

		case "pro", "gemini-pro":
			return newGemini(GeneratorArgs{
				Model: "models/gemini-2.5-pro",
			}), nil

		}

		if strings.HasPrefix(name, "models/") || strings.HasPrefix(name, "gemini-") {
			return newGemini(GeneratorArgs{
				Model: modelPath(name),
			}), nil
		}

		return nil, fmt.Errorf("invalid model: %s", name)
	}
}
