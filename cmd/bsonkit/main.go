// Command bsonkit converts JSON to BSON, lists the elements of the result and
// generates object ids.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/xdg-go/bsonkit/internal/config"
)

// Version information
const Version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Config  string           `help:"Path to a YAML config file. Defaults to the nearest .bsonkit.yml." short:"c" type:"path"`
	Debug   bool             `help:"Enable debug logging." short:"d"`
	Version kong.VersionFlag `help:"Show version information." short:"v"`

	Convert ConvertCmd `cmd:"" help:"Convert a JSON object or array to BSON."`
	Inspect InspectCmd `cmd:"" help:"Convert JSON and list the elements of the result."`
	OID     OIDCmd     `cmd:"" name:"oid" help:"Generate object ids."`
}

// env is bound into every command's Run method.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	in  io.Reader
	out io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("bsonkit"),
		kong.Description("Convert JSON to BSON documents."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": Version},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if cli.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(cli.Config, log)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 1
	}

	if err := kctx.Run(&env{cfg: cfg, log: log, in: stdin, out: stdout}); err != nil {
		log.WithError(err).WithField("command", kctx.Command()).Error("command failed")
		return 1
	}
	return 0
}

// loadConfig reads the named config file, or the nearest one found by
// searching upwards, or falls back to defaults.
func loadConfig(path string, log *logrus.Logger) (*config.Config, error) {
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		log.Debug("no config file, using defaults")
		return config.NewConfig(), nil
	}
	log.WithField("path", path).Debug("loading config")
	return config.LoadConfig(path)
}
