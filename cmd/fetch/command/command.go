package command

import (
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"stocktool/internal/config"
)

type Commander interface {
	Command() *cli.Command
}

var Commands = []Commander{}

func RegisterCommand(cmd Commander) {
	Commands = append(Commands, cmd)
}

// Version is stamped at build time with -ldflags "-X ...command.Version=...".
var Version = "v1.0.0"

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// loadConfig reads the config file, honoring CONFIG_FILE when no flag is given.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return config.Load(path)
}
