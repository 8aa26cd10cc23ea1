package mesh

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/arbor/internal/material"
)

// Document converts d to a glTF document with one primitive per submesh.
// Vertex colours carry the material tint with ambient occlusion folded into
// RGB, since glTF multiplies COLOR_0 alpha into coverage.
func Document(d *Data, name string) *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "arbor treebake"

	n := len(d.Vertices)
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	tangents := make([][4]float32, n)
	uv0 := make([][2]float32, n)
	uv1 := make([][2]float32, n)
	colors := make([][4]float32, n)

	tints := vertexTints(d)
	for i, v := range d.Vertices {
		positions[i] = v.Position.Array()
		normals[i] = v.Normal.Array()
		tangents[i] = v.Tangent
		// glTF puts the texture origin top left
		uv0[i] = [2]float32{v.UV0.X, 1 - v.UV0.Y}
		uv1[i] = [2]float32{v.UV1.X, 1 - v.UV1.Y}
		ao := v.Color[3]
		t := tints[i]
		colors[i] = [4]float32{v.Color[0] * t[0] * ao, v.Color[1] * t[1] * ao, v.Color[2] * t[2] * ao, 1}
	}

	attrs := map[string]int{
		gltf.POSITION:   modeler.WritePosition(doc, positions),
		gltf.NORMAL:     modeler.WriteNormal(doc, normals),
		gltf.TANGENT:    modeler.WriteTangent(doc, tangents),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uv0),
		gltf.TEXCOORD_1: modeler.WriteTextureCoord(doc, uv1),
		gltf.COLOR_0:    modeler.WriteColor(doc, colors),
	}

	for _, m := range d.Materials {
		doc.Materials = append(doc.Materials, gltfMaterial(m))
	}

	indices, submeshes := d.Indices()
	gm := &gltf.Mesh{Name: name}
	for _, sm := range submeshes {
		idx := indices[sm.StartIndex : sm.StartIndex+sm.IndexCount]
		gm.Primitives = append(gm.Primitives, &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(modeler.WriteIndices(doc, idx)),
			Material:   gltf.Index(sm.Material),
		})
	}
	doc.Meshes = []*gltf.Mesh{gm}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

// SaveGLB writes d as a binary glTF file.
func SaveGLB(d *Data, name, path string) error {
	return gltf.SaveBinary(Document(d, name), path)
}

// vertexTints returns the colour of the material each vertex is drawn with.
// Vertices shared by several materials take the last one.
func vertexTints(d *Data) [][4]float32 {
	tints := make([][4]float32, len(d.Vertices))
	for i := range tints {
		tints[i] = [4]float32{1, 1, 1, 1}
	}
	for _, tri := range d.Triangles {
		if tri.Material < 0 || tri.Material >= len(d.Materials) || d.Materials[tri.Material] == nil {
			continue
		}
		for _, v := range tri.V {
			tints[v] = d.Materials[tri.Material].Color
		}
	}
	return tints
}

func gltfMaterial(m *material.Material) *gltf.Material {
	out := &gltf.Material{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if m == nil {
		return out
	}
	out.Name = m.Name
	if m.Cutout {
		out.AlphaMode = gltf.AlphaMask
		out.AlphaCutoff = gltf.Float(0.5)
		out.DoubleSided = true
	}
	return out
}
