// Package dataset reads KITTI-style odometry sequences from disk: a
// calib.txt with pinhole intrinsics, a poses.txt with one camera-to-world
// transform per frame, 8-bit grayscale frames under image_0/, and optional
// 16-bit depth maps under depth_0/ scaled by a configurable divisor.
package dataset

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/keyframe-data/photobundle/internal/monitoring"
	"github.com/keyframe-data/photobundle/internal/pba"
)

// Dataset is an opened sequence. Frames are decoded lazily by Frame; only
// calibration, poses, and the frame inventory are held in memory.
type Dataset struct {
	Dir          string
	Calib        pba.Calibration
	Size         pba.ImageSize
	DepthDivisor float64 // raw 16-bit depth units per metre

	poses      []pba.Mat44
	frameCount int
	hasDepth   bool
}

// FrameData is one decoded frame ready for ingestion.
type FrameData struct {
	Index     int
	Intensity []uint8   // row-major, Size.Rows * Size.Cols
	Depth     []float32 // metres, nil when the sequence has no depth maps
	Pose      pba.Mat44 // camera-to-world
}

// Load opens the sequence at dir. depthDivisor converts raw 16-bit depth
// samples to metres; a zero raw sample stays zero and marks missing depth.
func Load(dir string, depthDivisor float64) (*Dataset, error) {
	if depthDivisor <= 0 {
		return nil, fmt.Errorf("depth divisor must be positive, got %f", depthDivisor)
	}

	calib, err := parseCalib(filepath.Join(dir, "calib.txt"))
	if err != nil {
		return nil, err
	}
	poses, err := parsePoses(filepath.Join(dir, "poses.txt"))
	if err != nil {
		return nil, err
	}

	imgDir := filepath.Join(dir, "image_0")
	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	numImages := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			numImages++
		}
	}

	frameCount := len(poses)
	if numImages < frameCount {
		monitoring.Logf("dataset %s: %d poses but %d images, truncating to %d frames",
			dir, len(poses), numImages, numImages)
		frameCount = numImages
	}
	if frameCount == 0 {
		return nil, fmt.Errorf("dataset %s has no frames", dir)
	}

	hasDepth := false
	if info, err := os.Stat(filepath.Join(dir, "depth_0")); err == nil && info.IsDir() {
		hasDepth = true
	}

	first, err := decodePNG(filepath.Join(imgDir, frameName(0)))
	if err != nil {
		return nil, fmt.Errorf("read first frame: %w", err)
	}
	b := first.Bounds()

	return &Dataset{
		Dir:          dir,
		Calib:        calib,
		Size:         pba.ImageSize{Rows: b.Dy(), Cols: b.Dx()},
		DepthDivisor: depthDivisor,
		poses:        poses,
		frameCount:   frameCount,
		hasDepth:     hasDepth,
	}, nil
}

// FrameCount returns the number of usable frames.
func (d *Dataset) FrameCount() int { return d.frameCount }

// HasDepth reports whether the sequence carries depth maps.
func (d *Dataset) HasDepth() bool { return d.hasDepth }

// Poses returns a copy of the ground-truth camera-to-world poses.
func (d *Dataset) Poses() []pba.Mat44 {
	out := make([]pba.Mat44, len(d.poses))
	copy(out, d.poses)
	return out
}

// Frame decodes frame i.
func (d *Dataset) Frame(i int) (*FrameData, error) {
	if i < 0 || i >= d.frameCount {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, d.frameCount)
	}

	img, err := decodePNG(filepath.Join(d.Dir, "image_0", frameName(i)))
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	if b := img.Bounds(); b.Dy() != d.Size.Rows || b.Dx() != d.Size.Cols {
		return nil, fmt.Errorf("frame %d is %dx%d, want %dx%d",
			i, b.Dy(), b.Dx(), d.Size.Rows, d.Size.Cols)
	}

	fd := &FrameData{
		Index:     i,
		Intensity: grayBytes(img),
		Pose:      d.poses[i],
	}

	if d.hasDepth {
		dimg, err := decodePNG(filepath.Join(d.Dir, "depth_0", frameName(i)))
		if err != nil {
			return nil, fmt.Errorf("frame %d depth: %w", i, err)
		}
		if b := dimg.Bounds(); b.Dy() != d.Size.Rows || b.Dx() != d.Size.Cols {
			return nil, fmt.Errorf("frame %d depth is %dx%d, want %dx%d",
				i, b.Dy(), b.Dx(), d.Size.Rows, d.Size.Cols)
		}
		fd.Depth = depthMetres(dimg, d.DepthDivisor)
	}
	return fd, nil
}

func frameName(i int) string {
	return fmt.Sprintf("%06d.png", i)
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// parseCalib reads pinhole intrinsics as "fx fy cx cy". A leading label
// token (such as "cam0:") is tolerated and skipped.
func parseCalib(path string) (pba.Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pba.Calibration{}, fmt.Errorf("read calib: %w", err)
	}

	vals := make([]float64, 0, 4)
	for _, field := range strings.Fields(string(data)) {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		vals = append(vals, v)
		if len(vals) == 4 {
			break
		}
	}
	if len(vals) < 4 {
		return pba.Calibration{}, fmt.Errorf("calib file %s: want fx fy cx cy, found %d numbers", path, len(vals))
	}

	c := pba.Calibration{Fx: vals[0], Fy: vals[1], Cx: vals[2], Cy: vals[3]}
	if !c.Valid() {
		return pba.Calibration{}, fmt.Errorf("calib file %s: focal lengths must be positive, got fx=%f fy=%f", path, c.Fx, c.Fy)
	}
	return c, nil
}

// parsePoses reads one camera-to-world transform per line as 12 reals, the
// top three rows of the matrix in row-major order.
func parsePoses(path string) ([]pba.Mat44, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read poses: %w", err)
	}
	defer f.Close()

	var poses []pba.Mat44
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 12 {
			return nil, fmt.Errorf("poses file %s line %d: want 12 values, got %d", path, lineNo, len(fields))
		}
		var T pba.Mat44
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("poses file %s line %d: %w", path, lineNo, err)
			}
			T[i] = v
		}
		T[15] = 1
		poses = append(poses, T)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan poses: %w", err)
	}
	return poses, nil
}

// grayBytes flattens a decoded image to row-major 8-bit intensities.
func grayBytes(img image.Image) []uint8 {
	b := img.Bounds()
	out := make([]uint8, b.Dx()*b.Dy())

	if g, ok := img.(*image.Gray); ok && g.Stride == b.Dx() {
		copy(out, g.Pix)
		return out
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out[i] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			i++
		}
	}
	return out
}

// depthMetres converts a decoded 16-bit depth map to metres.
func depthMetres(img image.Image, divisor float64) []float32 {
	b := img.Bounds()
	out := make([]float32, b.Dx()*b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out[i] = float32(float64(g.Y) / divisor)
			i++
		}
	}
	return out
}
