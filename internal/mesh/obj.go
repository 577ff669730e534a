package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadOBJ parses the subset of Wavefront OBJ needed for hit testing:
// positions, texture coordinates, faces and usemtl groups. Faces are
// triangulated as fans and de-indexed so every corner owns its UV.
func LoadOBJ(r io.Reader, name string) (*Mesh, error) {
	var (
		positions []Vec3
		uvs       []Vec2
		m         = &Mesh{Name: name}
		groups    = make(map[string]int)
		current   = ""
	)

	groupFor := func(material string) *Group {
		idx, ok := groups[material]
		if !ok {
			idx = len(m.Groups)
			groups[material] = idx
			m.Groups = append(m.Groups, Group{Material: material})
		}
		return &m.Groups[idx]
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
			positions = append(positions, Vec3{v[0], v[1], v[2]})

		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
			uvs = append(uvs, Vec2{v[0], v[1]})

		case "usemtl":
			if len(fields) > 1 {
				current = fields[1]
			}

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: face needs 3 vertices", line)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				pi, ti, err := parseCorner(f, len(positions), len(uvs))
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				m.Positions = append(m.Positions, positions[pi])
				if ti >= 0 {
					m.UVs = append(m.UVs, uvs[ti])
				} else {
					m.UVs = append(m.UVs, Vec2{})
				}
				corners = append(corners, len(m.Positions)-1)
			}
			g := groupFor(current)
			for i := 1; i+1 < len(corners); i++ {
				g.Indices = append(g.Indices, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj: read: %w", err)
	}
	return m, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseCorner resolves "p", "p/t", "p//n" or "p/t/n" to zero-based indices.
// A missing texture index is returned as -1.
func parseCorner(s string, nPos, nUV int) (int, int, error) {
	parts := strings.Split(s, "/")
	pi, err := resolveIndex(parts[0], nPos)
	if err != nil {
		return 0, 0, err
	}
	ti := -1
	if len(parts) > 1 && parts[1] != "" {
		ti, err = resolveIndex(parts[1], nUV)
		if err != nil {
			return 0, 0, err
		}
	}
	return pi, ti, nil
}

func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range", s)
	}
	return i, nil
}
