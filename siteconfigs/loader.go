package siteconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/infsite/cmds"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/logs"
)

//go:embed schema.cue
var Schema string

var configFiles = cmds.Collect[string]("-config")

var filenames = []string{
	"infsite.cue",
	".infsite.cue",
}

// ConfigsLoader loads explicit -config files first, then the working
// directory, the user config directory and /etc, in that precedence.
func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {

	paths := append([]string(nil), *configFiles...)
	defer func() {
		if len(paths) > 0 {
			logger.Info("config file",
				"paths", paths,
			)
		}
	}()

	var dirs []string
	if workingDir, err := os.Getwd(); err == nil {
		dirs = append(dirs, workingDir)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, configDir)
	}
	dirs = append(dirs, "/etc")

	paths = append(paths, findConfigFiles(dirs)...)

	return configs.NewLoader(paths, Schema)
}

func findConfigFiles(dirs []string) (paths []string) {
	for _, dir := range dirs {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	return
}
