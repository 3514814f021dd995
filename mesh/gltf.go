package mesh

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"vizgpu/driver"
	"vizgpu/gpu"
)

// LoadGLTF opens a .glb or .gltf file and returns one mesh per primitive.
// Only x and y of each position are kept.
func LoadGLTF(path string) ([]*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument converts the primitives of every mesh in doc. Primitives
// that cannot be read are skipped with a warning; it fails only if none
// can.
func FromDocument(doc *gltf.Document) ([]*Mesh, error) {
	var out []*Mesh
	var firstErr error
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			m, err := loadGLTFPrimitive(doc, gm.Name, pi, prim)
			if err != nil {
				gpu.Logger().Warn("gltf primitive skipped", "mesh", mi, "primitive", pi, "err", err)
				if firstErr == nil {
					firstErr = fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
				}
				continue
			}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("gltf: no mesh primitives")
	}
	return out, nil
}

func loadGLTFPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (*Mesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}
	mode, err := drawMode(prim.Mode)
	if err != nil {
		return nil, err
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	xy := make([]float32, 0, len(positions)*2)
	for _, p := range positions {
		xy = append(xy, p[0], p[1])
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}

	m := CreateMeshFromData(name, mode, xy, indices)
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
		for _, uv := range uvs {
			m.UVs = append(m.UVs, uv[0], uv[1])
		}
	}
	return m, nil
}

func drawMode(mode gltf.PrimitiveMode) (driver.DrawMode, error) {
	switch mode {
	case gltf.PrimitiveTriangles:
		return driver.DrawModeTriangles, nil
	case gltf.PrimitiveTriangleStrip:
		return driver.DrawModeTriangleStrip, nil
	case gltf.PrimitiveTriangleFan:
		return driver.DrawModeTriangleFan, nil
	case gltf.PrimitiveLines:
		return driver.DrawModeLines, nil
	case gltf.PrimitiveLineStrip:
		return driver.DrawModeLineStrip, nil
	case gltf.PrimitivePoints:
		return driver.DrawModePoints, nil
	}
	return 0, fmt.Errorf("unsupported primitive mode %d", mode)
}
