package assets

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"property-viewer/internal/viewer/scene"
)

// KindModel: вид ресурсов, созданных из загруженных моделей.
const KindModel scene.Kind = "asset.model"

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// ============================================================
// Compression
// ============================================================

// Decompress снимает zstd или gzip по сигнатуре и возвращает имя без
// расширения сжатия. Несжатые данные возвращаются как есть.
// Распакованный результат больше limit даёт ErrTooLarge
// (limit <= 0 означает DefaultMaxBytes).
func Decompress(name string, data []byte, limit int64) (string, []byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return "", nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := readLimited(dec, limit)
		if err != nil {
			return "", nil, fmt.Errorf("zstd: %w", err)
		}
		return trimExt(name, ".zst", ".zstd"), out, nil

	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := readLimited(zr, limit)
		if err != nil {
			return "", nil, fmt.Errorf("gzip: %w", err)
		}
		return trimExt(name, ".gz"), out, nil
	}
	return name, data, nil
}

func trimExt(name string, exts ...string) string {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// ============================================================
// Wavefront OBJ
// ============================================================

type objGroup struct {
	name     string
	material string
	indices  []uint32
}

// DecodeOBJ разбирает Wavefront OBJ. Каждый объект (o) или группа (g)
// становится отдельным мешем со своими вершинами.
// Нормали и текстурные координаты пропускаются.
func DecodeOBJ(name string, r io.Reader) (*scene.Node, error) {
	var positions []mgl64.Vec3
	groups := []*objGroup{{name: "default"}}
	current := groups[0]

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", line)
			}
			var v mgl64.Vec3
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				v[i] = f
			}
			positions = append(positions, v)

		case "o", "g":
			groupName := strings.Join(fields[1:], " ")
			if groupName == "" {
				groupName = fields[0]
			}
			if len(current.indices) == 0 && current.name == "default" {
				current.name = groupName
				continue
			}
			current = &objGroup{name: groupName, material: current.material}
			groups = append(groups, current)

		case "usemtl":
			if len(fields) > 1 {
				current.material = fields[1]
			}

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", line)
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				idx, err := vertexIndex(ref, len(positions))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				face = append(face, idx)
			}
			for i := 1; i+1 < len(face); i++ {
				current.indices = append(current.indices, face[0], face[i], face[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("obj %s: no vertices", name)
	}

	root := scene.NewNode(path.Base(name))
	for _, g := range groups {
		if len(g.indices) == 0 && len(groups) > 1 {
			continue
		}
		geom := compactGroup(positions, g.indices)
		res := scene.NewResource(KindModel, geom, &scene.Material{Name: g.material, Color: [4]float32{0.8, 0.8, 0.8, 1}})
		root.Add(scene.NewMesh(g.name, res))
	}
	return root, nil
}

// compactGroup оставляет в геометрии группы только её вершины,
// чтобы границы меша совпадали с его гранями.
// Группа без граней (единственная в файле) получает все вершины.
func compactGroup(positions []mgl64.Vec3, indices []uint32) *scene.Geometry {
	if len(indices) == 0 {
		return &scene.Geometry{Positions: append([]mgl64.Vec3(nil), positions...)}
	}
	remap := make(map[uint32]uint32, len(indices))
	geom := &scene.Geometry{Indices: make([]uint32, len(indices))}
	for i, idx := range indices {
		local, ok := remap[idx]
		if !ok {
			local = uint32(len(geom.Positions))
			remap[idx] = local
			geom.Positions = append(geom.Positions, positions[idx])
		}
		geom.Indices[i] = local
	}
	return geom
}

// vertexIndex переводит ссылку "v", "v/vt" или "v/vt/vn" в индекс с нуля.
// Отрицательные индексы отсчитываются от конца.
func vertexIndex(ref string, count int) (uint32, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad vertex index %q", ref)
	}
	if n < 0 {
		n = count + n + 1
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("vertex index %s out of range (have %d)", ref, count)
	}
	return uint32(n - 1), nil
}

// Decode выбирает декодер по расширению. Поддерживается только OBJ.
func Decode(name string, data []byte) (*scene.Node, error) {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".obj", "":
		return DecodeOBJ(name, bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: format %s", ErrUnsupportedRef, ext)
	}
}
