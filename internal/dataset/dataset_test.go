package dataset

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/keyframe-data/photobundle/internal/pba"
)

func writeGrayPNG(t *testing.T, path string, rows, cols int, at func(r, c int) uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.SetGray(c, r, color.Gray{Y: at(r, c)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func writeGray16PNG(t *testing.T, path string, rows, cols int, at func(r, c int) uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.SetGray16(c, r, color.Gray16{Y: at(r, c)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeSequence builds a 2-frame 32x32 sequence with a single bright pixel
// at (8, 10), constant depth 5 m, and a second pose translated along x.
func writeSequence(t *testing.T, withDepth bool) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "calib.txt"), "cam0: 10 10 16 16\n")
	writeFile(t, filepath.Join(dir, "poses.txt"),
		"1 0 0 0 0 1 0 0 0 0 1 0\n"+
			"1 0 0 1.5 0 1 0 0 0 0 1 0\n")

	imgDir := filepath.Join(dir, "image_0")
	if err := os.Mkdir(imgDir, 0o755); err != nil {
		t.Fatalf("mkdir image_0: %v", err)
	}
	dot := func(r, c int) uint8 {
		if r == 8 && c == 10 {
			return 200
		}
		return 0
	}
	writeGrayPNG(t, filepath.Join(imgDir, "000000.png"), 32, 32, dot)
	writeGrayPNG(t, filepath.Join(imgDir, "000001.png"), 32, 32, dot)

	if withDepth {
		depthDir := filepath.Join(dir, "depth_0")
		if err := os.Mkdir(depthDir, 0o755); err != nil {
			t.Fatalf("mkdir depth_0: %v", err)
		}
		flat := func(r, c int) uint16 { return 1280 } // 1280/256 = 5 m
		writeGray16PNG(t, filepath.Join(depthDir, "000000.png"), 32, 32, flat)
		writeGray16PNG(t, filepath.Join(depthDir, "000001.png"), 32, 32, flat)
	}
	return dir
}

func TestLoadSequence(t *testing.T) {
	dir := writeSequence(t, true)

	ds, err := Load(dir, 256.0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := ds.FrameCount(); got != 2 {
		t.Errorf("FrameCount = %d, want 2", got)
	}
	if !ds.HasDepth() {
		t.Errorf("HasDepth = false, want true")
	}
	if ds.Size != (pba.ImageSize{Rows: 32, Cols: 32}) {
		t.Errorf("Size = %v, want 32x32", ds.Size)
	}
	wantCalib := pba.Calibration{Fx: 10, Fy: 10, Cx: 16, Cy: 16}
	if diff := cmp.Diff(wantCalib, ds.Calib); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameDecoding(t *testing.T) {
	dir := writeSequence(t, true)
	ds, err := Load(dir, 256.0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	fd, err := ds.Frame(0)
	if err != nil {
		t.Fatalf("Frame(0): %v", err)
	}
	if fd.Index != 0 {
		t.Errorf("Index = %d, want 0", fd.Index)
	}
	if len(fd.Intensity) != 32*32 {
		t.Fatalf("Intensity length = %d, want 1024", len(fd.Intensity))
	}
	if got := fd.Intensity[8*32+10]; got != 200 {
		t.Errorf("bright pixel = %d, want 200", got)
	}
	if got := fd.Intensity[0]; got != 0 {
		t.Errorf("background pixel = %d, want 0", got)
	}
	if len(fd.Depth) != 32*32 {
		t.Fatalf("Depth length = %d, want 1024", len(fd.Depth))
	}
	if got := fd.Depth[5*32+7]; got != 5.0 {
		t.Errorf("depth sample = %f, want 5.0", got)
	}
	if diff := cmp.Diff(pba.Mat44Identity(), fd.Pose); diff != "" {
		t.Errorf("frame 0 pose mismatch (-want +got):\n%s", diff)
	}

	fd1, err := ds.Frame(1)
	if err != nil {
		t.Fatalf("Frame(1): %v", err)
	}
	wantPose := pba.Mat44Identity()
	wantPose[3] = 1.5
	if diff := cmp.Diff(wantPose, fd1.Pose); diff != "" {
		t.Errorf("frame 1 pose mismatch (-want +got):\n%s", diff)
	}
	if !fd1.Pose.IsValidTransform() {
		t.Errorf("loaded pose fails rigidity check")
	}
}

func TestFrameOutOfRange(t *testing.T) {
	ds, err := Load(writeSequence(t, false), 256.0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := ds.Frame(2); err == nil {
		t.Errorf("Frame(2) succeeded past the end")
	}
	if _, err := ds.Frame(-1); err == nil {
		t.Errorf("Frame(-1) succeeded")
	}
}

func TestLoadWithoutDepth(t *testing.T) {
	ds, err := Load(writeSequence(t, false), 256.0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.HasDepth() {
		t.Errorf("HasDepth = true without depth_0")
	}
	fd, err := ds.Frame(0)
	if err != nil {
		t.Fatalf("Frame(0): %v", err)
	}
	if fd.Depth != nil {
		t.Errorf("Depth = %v, want nil", fd.Depth)
	}
}

func TestLoadTruncatesToImages(t *testing.T) {
	dir := writeSequence(t, false)
	// Third pose without a third image.
	writeFile(t, filepath.Join(dir, "poses.txt"),
		"1 0 0 0 0 1 0 0 0 0 1 0\n"+
			"1 0 0 1.5 0 1 0 0 0 0 1 0\n"+
			"1 0 0 3.0 0 1 0 0 0 0 1 0\n")

	ds, err := Load(dir, 256.0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := ds.FrameCount(); got != 2 {
		t.Errorf("FrameCount = %d, want 2 (truncated to images)", got)
	}
	if got := len(ds.Poses()); got != 3 {
		t.Errorf("Poses length = %d, want all 3 parsed", got)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := writeSequence(t, false)

	if _, err := Load(dir, 0); err == nil {
		t.Errorf("zero depth divisor accepted")
	}

	writeFile(t, filepath.Join(dir, "calib.txt"), "10 10 16\n")
	if _, err := Load(dir, 256.0); err == nil || !strings.Contains(err.Error(), "calib") {
		t.Errorf("short calib error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "calib.txt"), "0 10 16 16\n")
	if _, err := Load(dir, 256.0); err == nil || !strings.Contains(err.Error(), "focal") {
		t.Errorf("zero focal error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "calib.txt"), "10 10 16 16\n")

	writeFile(t, filepath.Join(dir, "poses.txt"), "1 0 0 0 0 1 0 0 0 0 1\n")
	if _, err := Load(dir, 256.0); err == nil || !strings.Contains(err.Error(), "12 values") {
		t.Errorf("short pose line error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "poses.txt"), "1 0 0 0 0 1 0 0 0 0 1 bad\n")
	if _, err := Load(dir, 256.0); err == nil {
		t.Errorf("non-numeric pose accepted")
	}

	if _, err := Load(t.TempDir(), 256.0); err == nil {
		t.Errorf("empty directory accepted")
	}
}
