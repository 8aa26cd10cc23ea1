package mesh

// Target receives finished build buffers. Implementations must leave their
// state unchanged until SetData is called.
type Target interface {
	Clear()
	SetData(d *Data)
	RecalculateBounds()
}

// Mesh is the in-memory Target used by the command line tools.
type Mesh struct {
	Name      string
	Data      *Data
	Indices   []uint32
	Submeshes []Submesh
	Bounds    Bounds
	// Version increments every time new data is applied.
	Version int
}

// NewMesh returns an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// Clear drops all buffers.
func (m *Mesh) Clear() {
	m.Data = nil
	m.Indices = nil
	m.Submeshes = nil
	m.Bounds = Bounds{}
}

// SetData replaces the buffers and rebuilds the index buffer.
func (m *Mesh) SetData(d *Data) {
	m.Data = d
	if d != nil {
		m.Indices, m.Submeshes = d.Indices()
	}
	m.Version++
}

// RecalculateBounds recomputes the bounding box from the vertex buffer.
func (m *Mesh) RecalculateBounds() {
	if m.Data == nil {
		m.Bounds = Bounds{}
		return
	}
	m.Bounds = ComputeBounds(m.Data.Vertices)
	m.Data.Bounds = m.Bounds
}

// Empty reports whether the mesh holds no vertices.
func (m *Mesh) Empty() bool {
	return m.Data == nil || len(m.Data.Vertices) == 0
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m.Data == nil {
		return 0
	}
	return len(m.Data.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m.Data == nil {
		return 0
	}
	return len(m.Data.Triangles)
}
