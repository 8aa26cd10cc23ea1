package main

import (
	"fmt"
	"strings"

	"github.com/Faultbox/arbor/internal/generator"
	"github.com/Faultbox/arbor/internal/mesh"
	"github.com/Faultbox/arbor/internal/tree"
)

func cmdInfo(args []string) error {
	cfg, rest, err := setup("info", args, nil)
	if err != nil {
		return err
	}
	path, err := treeArg("info", rest)
	if err != nil {
		return err
	}

	t, err := tree.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Tree:      %s\n", t.Name)
	fmt.Printf("Seed:      %d\n", t.Root().Seed)
	fmt.Printf("Groups:    %d\n", len(t.Groups)-1)
	fmt.Println()
	printGroup(t, 0, 0)

	fmt.Println()
	fmt.Println("Materials:")
	for _, name := range t.Materials.Names() {
		m := t.Materials.Get(name)
		var flags []string
		if m.Tiling {
			flags = append(flags, "tiling")
		}
		if m.Cutout {
			flags = append(flags, "cutout")
		}
		fmt.Printf("  %-16s %-24s %s\n", m.Name, m.Shader, strings.Join(flags, ","))
	}

	g := generator.New(t)
	g.Quality = cfg.Build.Quality
	g.PreviewQuality = cfg.Build.PreviewQuality
	g.Seed = cfg.Build.Seed
	g.Flags.OptimizeMaterials = false

	fmt.Println()
	fmt.Println("Builds:")
	for _, preview := range []bool{true, false} {
		label := "full"
		if preview {
			label = "preview"
		}
		if !g.UpdateMesh(mesh.NewMesh(t.Name), preview) {
			fmt.Printf("  %-8s failed\n", label)
			continue
		}
		fmt.Printf("  %-8s q=%.2f nodes=%d vertices=%d triangles=%d submeshes=%d (%s)\n",
			label, g.Options(preview).Quality, len(t.Nodes),
			g.Stats.Vertices, g.Stats.Triangles, g.Stats.Submeshes, g.Stats.Duration)
	}
	return nil
}

func printGroup(t *tree.Tree, gi, depth int) {
	g := t.Group(gi)
	if g == nil {
		return
	}
	name := g.Name
	if name == "" {
		name = fmt.Sprintf("#%d", g.ID)
	}
	detail := ""
	switch {
	case g.Branch != nil:
		detail = fmt.Sprintf("%s x%d material=%s", g.Branch.Mode, g.Distribution.Frequency, g.Branch.Material)
	case g.Leaf != nil:
		detail = fmt.Sprintf("%s x%d material=%s", g.Leaf.Mode, g.Distribution.Frequency, g.Leaf.Material)
	}
	hidden := ""
	if !g.Visible {
		hidden = " (hidden)"
	}
	fmt.Printf("%s%-*s %-6s %s%s\n", strings.Repeat("  ", depth), 20-2*depth, name, g.Kind, detail, hidden)
	for _, c := range g.Children {
		printGroup(t, c, depth+1)
	}
}
