package mesh

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Faultbox/arbor/internal/material"
)

// WriteOBJ writes d as a Wavefront OBJ file. When mtllib is not empty it is
// referenced and each submesh selects its material by name.
func WriteOBJ(w io.Writer, d *Data, mtllib string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %d vertices, %d triangles\n", len(d.Vertices), len(d.Triangles))
	if mtllib != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtllib)
	}
	for _, v := range d.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v.Position.X, v.Position.Y, v.Position.Z)
	}
	for _, v := range d.Vertices {
		fmt.Fprintf(bw, "vn %g %g %g\n", v.Normal.X, v.Normal.Y, v.Normal.Z)
	}
	for _, v := range d.Vertices {
		fmt.Fprintf(bw, "vt %g %g\n", v.UV0.X, v.UV0.Y)
	}

	indices, submeshes := d.Indices()
	for _, sm := range submeshes {
		name := fmt.Sprintf("material%d", sm.Material)
		if m := d.Materials[sm.Material]; m != nil {
			name = m.Name
		}
		fmt.Fprintf(bw, "g %s\nusemtl %s\n", name, name)
		for i := sm.StartIndex; i < sm.StartIndex+sm.IndexCount; i += 3 {
			// OBJ indices are 1-based
			a, b, c := indices[i]+1, indices[i+1]+1, indices[i+2]+1
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
	}
	return bw.Flush()
}

// WriteMTL writes the material library for WriteOBJ. Texture paths are
// written relative to dir when possible.
func WriteMTL(w io.Writer, materials []*material.Material, dir string) error {
	bw := bufio.NewWriter(w)
	for _, m := range materials {
		if m == nil {
			continue
		}
		fmt.Fprintf(bw, "newmtl %s\n", m.Name)
		fmt.Fprintf(bw, "Kd %g %g %g\n", m.Color[0], m.Color[1], m.Color[2])
		fmt.Fprintf(bw, "Ns %g\n", m.Shininess*128)
		fmt.Fprintf(bw, "d %g\n", m.Color[3])
		if tex := m.Textures[material.SlotDiffuse]; tex != "" {
			fmt.Fprintf(bw, "map_Kd %s\n", relPath(dir, tex))
		}
		if tex := m.Textures[material.SlotNormal]; tex != "" {
			fmt.Fprintf(bw, "norm %s\n", relPath(dir, tex))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func relPath(dir, path string) string {
	if dir == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(dir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
