package generators

import (
	"os"

	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/vars"
)

type GoogleAPIKey string

func (Module) GoogleAPIKey(
	loader configs.Loader,
) GoogleAPIKey {
	return vars.FirstNonZero(
		configs.First[GoogleAPIKey](loader, "google_api_key"),
		GoogleAPIKey(os.Getenv("GEMINI_KEY")),
		GoogleAPIKey(os.Getenv("GOOGLE_API_KEY")),
	)
}
