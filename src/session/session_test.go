package session

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapzone/src/screenshot"
)

type fakeGrabber struct {
	err error
}

func (f fakeGrabber) Grab(r screenshot.Rectangle) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, r.Width(), r.Height())), nil
}

var testRect = screenshot.Rectangle{X1: 0, Y1: 0, X2: 40, Y2: 20}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestNames(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 42*int(time.Millisecond), time.Local)
	if got := SessionDirName(at); got != "SnapZone_Session_20240309_140507" {
		t.Errorf("SessionDirName = %q", got)
	}
	if got := ShotName(at, 7); got != "screenshot_20240309_140507_042_0007.png" {
		t.Errorf("ShotName = %q", got)
	}
}

func TestPrepareSessionUnique(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(fakeGrabber{}).WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)))

	first, err := w.PrepareSession(base)
	if err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	second, err := w.PrepareSession(base)
	if err != nil {
		t.Fatalf("second PrepareSession failed: %v", err)
	}
	if first == second {
		t.Fatalf("Expected distinct directories, both %s", first)
	}
	if filepath.Base(first) != "SnapZone_Session_20240101_000000" {
		t.Errorf("Unexpected first dir %s", first)
	}
	if filepath.Base(second) != "SnapZone_Session_20240101_000000_2" {
		t.Errorf("Unexpected second dir %s", second)
	}
}

func TestPrepareSessionFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewWriter(fakeGrabber{}).PrepareSession(file)
	if !errors.Is(err, ErrSessionDir) {
		t.Fatalf("Expected ErrSessionDir, got %v", err)
	}
}

func TestCaptureOneWritesPNG(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 1, 1, 12, 0, 0, 5*int(time.Millisecond), time.Local)
	w := NewWriter(fakeGrabber{}).WithClock(fixedClock(at))

	path, err := w.CaptureOne(dir, testRect, 1)
	if err != nil {
		t.Fatalf("CaptureOne failed: %v", err)
	}
	if filepath.Base(path) != "screenshot_20240101_120000_005_0001.png" {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("Unexpected image size %v", img.Bounds())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the final file, found %d entries", len(entries))
	}
}

func TestCaptureOneGrabFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(fakeGrabber{err: errors.New("display gone")})

	_, err := w.CaptureOne(dir, testRect, 1)
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("Expected ErrCapture, got %v", err)
	}
	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Op != "grab" {
		t.Errorf("Expected grab CaptureError, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty session dir, found %d entries", len(entries))
	}
}

func TestCaptureOneMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	_, err := NewWriter(fakeGrabber{}).CaptureOne(missing, testRect, 1)
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("Expected ErrCapture, got %v", err)
	}
}

type hookGrabber struct {
	fakeGrabber
	onGrab func()
}

func (h hookGrabber) Grab(r screenshot.Rectangle) (image.Image, error) {
	h.onGrab()
	return h.fakeGrabber.Grab(r)
}

func TestCaptureOneNamesShotAtGrabTime(t *testing.T) {
	grabbedAt := time.Date(2024, 5, 1, 9, 30, 0, 125*int(time.Millisecond), time.Local)
	grabbed := false
	reads := 0
	clock := func() time.Time {
		reads++
		if !grabbed {
			t.Error("clock read before the grab")
		}
		// any later read would land after encode and fsync
		return grabbedAt.Add(time.Duration(reads-1) * 3 * time.Second)
	}

	dir := t.TempDir()
	w := NewWriter(hookGrabber{onGrab: func() { grabbed = true }}).WithClock(clock)
	file, err := w.CaptureOne(dir, testRect, 3)
	if err != nil {
		t.Fatalf("CaptureOne failed: %v", err)
	}
	if got, want := filepath.Base(file), "screenshot_20240501_093000_125_0003.png"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if reads != 1 {
		t.Errorf("Expected one clock read per shot, got %d", reads)
	}
}
