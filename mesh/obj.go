package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vizgpu/driver"
	"vizgpu/math"
)

// LoadOBJ reads a Wavefront .obj file into one mesh per object or group.
// Only x and y of each position are kept; faces are fan-triangulated.
func LoadOBJ(path string) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()
	return ReadOBJ(f, filepath.Base(path))
}

// ReadOBJ parses OBJ text. name labels meshes declared before any o or g
// statement.
func ReadOBJ(r io.Reader, name string) ([]*Mesh, error) {
	var (
		positions []math.Vec2
		uvs       []math.Vec2
		out       []*Mesh
	)
	current := &Mesh{Name: name, Mode: driver.DrawModeTriangles}
	vertexMap := make(map[[2]int]uint32) // resolved {v, vt} -> vertex index
	hasUV := false

	flush := func() {
		if len(current.Positions) > 0 {
			if !hasUV {
				current.UVs = nil
			}
			out = append(out, current)
		}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "v", "vt":
			if len(parts) < 3 {
				return nil, fmt.Errorf("obj:%d: %s needs two coordinates", lineNo, parts[0])
			}
			x, err1 := strconv.ParseFloat(parts[1], 32)
			y, err2 := strconv.ParseFloat(parts[2], 32)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("obj:%d: bad coordinates %q", lineNo, line)
			}
			p := math.NewVec2(float32(x), float32(y))
			if parts[0] == "v" {
				positions = append(positions, p)
			} else {
				uvs = append(uvs, p)
			}
		case "f":
			if len(parts) < 4 {
				return nil, fmt.Errorf("obj:%d: face with %d vertices", lineNo, len(parts)-1)
			}
			face := make([]uint32, 0, len(parts)-1)
			for _, ref := range parts[1:] {
				key, err := faceVertex(ref, len(positions), len(uvs))
				if err != nil {
					return nil, fmt.Errorf("obj:%d: %w", lineNo, err)
				}
				if idx, ok := vertexMap[key]; ok {
					face = append(face, idx)
					continue
				}
				idx := uint32(len(current.Positions) / 2)
				p := positions[key[0]]
				current.Positions = append(current.Positions, p.X, p.Y)
				var uv math.Vec2
				if key[1] >= 0 {
					uv = uvs[key[1]]
					hasUV = true
				}
				current.UVs = append(current.UVs, uv.X, uv.Y)
				vertexMap[key] = idx
				face = append(face, idx)
			}
			for i := 2; i < len(face); i++ {
				current.Indices = append(current.Indices, face[0], face[i-1], face[i])
			}
		case "o", "g":
			flush()
			groupName := "unnamed"
			if len(parts) > 1 {
				groupName = parts[1]
			}
			current = &Mesh{Name: groupName, Mode: driver.DrawModeTriangles}
			vertexMap = make(map[[2]int]uint32)
			hasUV = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(out) == 0 {
		return nil, fmt.Errorf("no mesh data found in OBJ file")
	}
	return out, nil
}

// faceVertex resolves "v", "v/vt", "v//vn" or "v/vt/vn" to zero-based
// {position, uv} indices, with uv -1 when absent. Indices are 1-based;
// negative indices count back from the last element defined so far.
func faceVertex(ref string, positions, uvs int) ([2]int, error) {
	vs, rest, _ := strings.Cut(ref, "/")
	ts, _, _ := strings.Cut(rest, "/") // normals are ignored
	vi, err := objIndex(vs, positions)
	if err != nil {
		return [2]int{}, fmt.Errorf("position %q: %w", ref, err)
	}
	ti := -1
	if ts != "" {
		if ti, err = objIndex(ts, uvs); err != nil {
			return [2]int{}, fmt.Errorf("uv %q: %w", ref, err)
		}
	}
	return [2]int{vi, ti}, nil
}

func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += n
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range (%d defined)", s, n)
	}
	return i, nil
}
