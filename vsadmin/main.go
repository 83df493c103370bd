// vsadmin drives the binding-and-verification core from the command line:
// building trust lists, encrypting artifacts, producing manifests and
// verifying them.
package main

import (
	"os"
	"path/filepath"

	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	cli "gopkg.in/urfave/cli.v1"
)

var cliApp = cli.NewApp()

// getDataPath is a function pointer so that tests can hook and modify this.
var getDataPath = cfgpath.GetDataPath

var gitTag = "dev"

func init() {
	cliApp.Name = "vsadmin"
	cliApp.Usage = "Build trust lists, bind artifacts and verify manifests"
	cliApp.Version = gitTag
	cliApp.Commands = cmds // stored in "commands.go"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "VS_CONFIG",
			Value:  filepath.Join(getDataPath(cliApp.Name), "config.toml"),
			Usage:  "deployment configuration (curve, tree hash)",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
}

func main() {
	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
