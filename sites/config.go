package sites

import (
	"fmt"
	"slices"

	"github.com/reusee/infsite/cmds"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/vars"
)

// Config holds the routing and assembly settings of the page proxy.
type Config struct {
	StylesheetPath string
	StylesheetFile string
	ImageBaseURL   string
	ImageWidth     int
	ImageHeight    int
	// PageExtensions are path fragments that mark a dotted path as a page
	// rather than an inert file.
	PageExtensions []string
	BodyPolicy     BodyPolicyKind
	StartMarker    string
	EndMarker      string
}

var (
	bodyPolicyFlag = cmds.Var[string]("-body-policy")
)

var defaultPageExtensions = []string{".aspx", ".md", ".php"}

func (Module) Config(
	loader configs.Loader,
) Config {
	// every config file may add page extensions
	var pageExtensions []string
	for exts := range configs.All[[]string](loader, "page_extensions") {
		for _, ext := range exts {
			if !slices.Contains(pageExtensions, ext) {
				pageExtensions = append(pageExtensions, ext)
			}
		}
	}
	if len(pageExtensions) == 0 {
		pageExtensions = defaultPageExtensions
	}
	return Config{
		StylesheetPath: vars.FirstNonZero(
			configs.First[string](loader, "stylesheet_path"),
			"/tailwind.js",
		),
		StylesheetFile: vars.FirstNonZero(
			configs.First[string](loader, "stylesheet_file"),
			"tailwind.js",
		),
		ImageBaseURL: vars.FirstNonZero(
			configs.First[string](loader, "image_base_url"),
			"https://picsum.photos",
		),
		ImageWidth: vars.FirstNonZero(
			configs.First[int](loader, "image_width"),
			1000,
		),
		ImageHeight: vars.FirstNonZero(
			configs.First[int](loader, "image_height"),
			600,
		),
		PageExtensions: pageExtensions,
		BodyPolicy: vars.FirstNonZero(
			BodyPolicyKind(*bodyPolicyFlag),
			configs.First[BodyPolicyKind](loader, "body_policy"),
			BodyPolicyPassthrough,
		),
		StartMarker: vars.FirstNonZero(
			configs.First[string](loader, "start_marker"),
			"<main",
		),
		EndMarker: vars.FirstNonZero(
			configs.First[string](loader, "end_marker"),
			"</main>",
		),
	}
}

func (c Config) Validate() error {
	switch c.BodyPolicy {
	case BodyPolicyPassthrough:
	case BodyPolicyMarker:
		if c.StartMarker == "" || c.EndMarker == "" {
			return fmt.Errorf("marker body policy needs start and end markers")
		}
	default:
		return fmt.Errorf("unknown body policy: %q", c.BodyPolicy)
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("invalid default image size: %dx%d", c.ImageWidth, c.ImageHeight)
	}
	return nil
}
