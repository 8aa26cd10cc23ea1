package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/arbor/cmd/treebake/templates"
	"github.com/Faultbox/arbor/internal/config"
)

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("f", false, "Overwrite existing files")
	fs.Parse(args)

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	written, err := initProject(dir, *force)
	for _, p := range written {
		fmt.Printf("Wrote %s\n", p)
	}
	return err
}

// initProject writes the sample tree and a default config into dir.
func initProject(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	treePath := filepath.Join(dir, "birch.yaml")
	cfgPath := filepath.Join(dir, config.FileName)

	if !force {
		for _, p := range []string{treePath, cfgPath} {
			if _, err := os.Stat(p); err == nil {
				return nil, fmt.Errorf("%s exists (use -f to overwrite)", p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := os.WriteFile(treePath, []byte(templates.Birch), 0644); err != nil {
		return nil, err
	}
	if err := config.Default().SaveTo(cfgPath); err != nil {
		return []string{treePath}, err
	}
	return []string{treePath, cfgPath}, nil
}
