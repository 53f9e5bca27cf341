package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/gogpu/depthmesh"
)

func testSnapshot(withColor bool) depthmesh.MeshSnapshot {
	snap := depthmesh.MeshSnapshot{
		Width:  2,
		Height: 2,
		Vertices: []depthmesh.Vec3{
			{X: 0, Y: 0, Z: 0.1}, {X: 1, Y: 0, Z: 0.2},
			{X: 0, Y: 1, Z: 0.3}, {X: 1, Y: 1, Z: 0.4},
		},
		Indices: []uint32{0, 1, 3, 2},
		UVs:     []depthmesh.Vec2{{U: 0, V: 0}, {U: 1, V: 0}, {U: 0, V: 1}, {U: 1, V: 1}},
	}
	if withColor {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})
		snap.Color = img
	}
	return snap
}

func TestDocument(t *testing.T) {
	doc, err := Document(testSnapshot(false))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("meshes = %d, want one mesh with one primitive", len(doc.Meshes))
	}
	prim := doc.Meshes[0].Primitives[0]

	for _, attr := range []string{gltf.POSITION, gltf.TEXCOORD_0} {
		if _, ok := prim.Attributes[attr]; !ok {
			t.Errorf("missing attribute %s", attr)
		}
	}
	if _, ok := prim.Attributes[gltf.COLOR_0]; ok {
		t.Error("COLOR_0 written without a color image")
	}

	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	if pos.Count != 4 {
		t.Errorf("position count = %d, want 4", pos.Count)
	}
	if prim.Indices == nil {
		t.Fatal("primitive has no indices")
	}
	if got := doc.Accessors[*prim.Indices].Count; got != 6 {
		t.Errorf("index count = %d, want 6 (one quad, two triangles)", got)
	}
}

func TestDocumentWithColor(t *testing.T) {
	doc, err := Document(testSnapshot(true))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	idx, ok := doc.Meshes[0].Primitives[0].Attributes[gltf.COLOR_0]
	if !ok {
		t.Fatal("COLOR_0 missing with a color image")
	}
	if got := doc.Accessors[idx].Count; got != 4 {
		t.Errorf("color count = %d, want 4", got)
	}
}

func TestDocumentEmpty(t *testing.T) {
	if _, err := Document(depthmesh.MeshSnapshot{}); !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("Document(empty) error = %v, want ErrEmptySnapshot", err)
	}
	if err := Encode(&bytes.Buffer{}, depthmesh.MeshSnapshot{}); !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("Encode(empty) error = %v, want ErrEmptySnapshot", err)
	}
}

func TestBytesIsGLB(t *testing.T) {
	b, err := Bytes(testSnapshot(true))
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if len(b) < 12 || string(b[0:4]) != "glTF" {
		t.Fatalf("header = %q, want glTF", b[:min(len(b), 4)])
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != 2 {
		t.Errorf("GLB version = %d, want 2", v)
	}
	if n := binary.LittleEndian.Uint32(b[8:12]); int(n) != len(b) {
		t.Errorf("GLB length = %d, want %d", n, len(b))
	}
}

func TestWriteGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.glb")
	if err := WriteGLB(path, testSnapshot(false)); err != nil {
		t.Fatalf("WriteGLB() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() == 0 {
		t.Error("WriteGLB() wrote an empty file")
	}
}
