// Package export writes mesh snapshots as binary glTF.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/gogpu/depthmesh"
)

// ErrEmptySnapshot is returned when a snapshot carries no mesh.
var ErrEmptySnapshot = errors.New("export: snapshot has no mesh")

// Document builds a glTF document with one triangle mesh from snap.
// Quads are split into two triangles. Vertex colors are written when the
// snapshot carries a color image.
func Document(snap depthmesh.MeshSnapshot) (*gltf.Document, error) {
	if snap.Empty() || len(snap.Vertices) == 0 || len(snap.Indices) == 0 {
		return nil, ErrEmptySnapshot
	}

	positions := make([][3]float32, len(snap.Vertices))
	for i, v := range snap.Vertices {
		positions[i] = [3]float32{v.X, v.Y, v.Z}
	}
	uvs := make([][2]float32, len(snap.UVs))
	for i, uv := range snap.UVs {
		uvs[i] = [2]float32{uv.U, uv.V}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "depthmesh"
	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION:   modeler.WritePosition(doc, positions),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uvs),
		},
		Indices: gltf.Index(modeler.WriteIndices(doc, depthmesh.Triangles(snap.Indices))),
	}

	if snap.Color != nil {
		colors := make([][4]float32, len(snap.Vertices))
		b := snap.Color.Bounds()
		for i := range colors {
			c := snap.Color.RGBAAt(b.Min.X+i%snap.Width, b.Min.Y+i/snap.Width)
			colors[i] = [4]float32{
				float32(c.R) / 255,
				float32(c.G) / 255,
				float32(c.B) / 255,
				float32(c.A) / 255,
			}
		}
		prim.Attributes[gltf.COLOR_0] = modeler.WriteColor(doc, colors)
	}

	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float64{1, 1, 1, 1},
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}
	prim.Material = gltf.Index(0)

	doc.Meshes = []*gltf.Mesh{{
		Name:       fmt.Sprintf("depthmesh_%dx%d", snap.Width, snap.Height),
		Primitives: []*gltf.Primitive{prim},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// Encode writes snap to w as GLB.
func Encode(w io.Writer, snap depthmesh.MeshSnapshot) error {
	doc, err := Document(snap)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: encode glb: %w", err)
	}
	return nil
}

// Bytes returns snap encoded as GLB.
func Bytes(snap depthmesh.MeshSnapshot) ([]byte, error) {
	var out bytes.Buffer
	if err := Encode(&out, snap); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// WriteGLB saves snap as a GLB file at path.
func WriteGLB(path string, snap depthmesh.MeshSnapshot) error {
	doc, err := Document(snap)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}
