// treebake builds tree meshes and material atlases from tree documents.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/config"
	"github.com/Faultbox/arbor/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "build":
		err = cmdBuild(args, false)
	case "preview":
		err = cmdBuild(args, true)
	case "watch":
		err = cmdWatch(args)
	case "info":
		err = cmdInfo(args)
	case "init":
		err = cmdInit(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error(command+" failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Sync()
}

func printUsage() {
	fmt.Println(`treebake - procedural tree mesh builder

Usage:
  treebake <command> [options] <tree.yaml|tree.toml>

Commands:
  build   <tree>        Full build: AO, welding, material atlas, OBJ output
  preview <tree>        Fast build without the expensive passes
  watch   <tree>        Rebuild whenever the tree or its textures change
  info    <tree>        Show groups, materials and build statistics
  init    [dir]         Write a sample tree and config

Options (build, preview, watch, info):
  -config <file>        Config file (default ./arbor.yaml)
  -quality <q>          Build quality in (0,1]
  -seed <n>             Build seed
  -o <dir>              Output directory
  -atlas <px>           Atlas size
  -gpu                  Composite atlases with OpenGL
  -no-ao, -no-weld, -no-optimize
  -debug                Debug logging

Examples:
  treebake init trees
  treebake build -quality 0.8 trees/birch.yaml
  treebake watch -o out trees/birch.yaml`)
}

// setup parses the shared flags, loads the config and starts logging. It
// returns the positional arguments.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (*config.Config, []string, error) {
	var flags config.Flags
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Register(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	cfg, err := config.Load(&flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)
	return cfg, fs.Args(), nil
}

func treeArg(name string, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: treebake %s [options] <tree.yaml>", name)
	}
	return args[0], nil
}

func cmdBuild(args []string, preview bool) error {
	name := "build"
	if preview {
		name = "preview"
	}
	cfg, rest, err := setup(name, args, nil)
	if err != nil {
		return err
	}
	path, err := treeArg(name, rest)
	if err != nil {
		return err
	}

	b, err := newBaker(cfg, path)
	if err != nil {
		return err
	}
	defer b.Close()

	out, err := b.Bake(preview)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d vertices, %d triangles, %d submeshes)\n",
		out, b.gen.Stats.Vertices, b.gen.Stats.Triangles, b.gen.Stats.Submeshes)
	return nil
}
