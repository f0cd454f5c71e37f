package generators

import "strings"

var (
	K = 1 << 10
	M = 1 << 20
)

// modelPath returns the resource name form ("models/x") of a model id.
func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
