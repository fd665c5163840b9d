package session

import (
	"errors"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"snapzone/src/screenshot"
)

const (
	sessionPrefix   = "SnapZone_Session_"
	sessionLayout   = "20060102_150405"
	maxNameAttempts = 100
)

var (
	ErrSessionDir = errors.New("session directory error")
	ErrCapture    = errors.New("capture error")
)

// CaptureError describes one failed shot. It matches ErrCapture.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool { return target == ErrCapture }

// Writer derives session directories and shot filenames and persists images.
type Writer struct {
	grabber screenshot.Grabber
	clock   func() time.Time
	encoder png.Encoder
}

// NewWriter returns a Writer grabbing through g. A nil g uses the screen.
func NewWriter(g screenshot.Grabber) *Writer {
	if g == nil {
		g = screenshot.ScreenGrabber{}
	}
	return &Writer{
		grabber: g,
		clock:   time.Now,
		encoder: png.Encoder{CompressionLevel: png.BestCompression},
	}
}

// WithClock overrides the timestamp source used for names.
func (w *Writer) WithClock(clock func() time.Time) *Writer {
	w.clock = clock
	return w
}

// SessionDirName returns the directory name for a session started at t.
func SessionDirName(t time.Time) string {
	return sessionPrefix + t.Format(sessionLayout)
}

// ShotName returns the file name of shot number counter taken at t.
func ShotName(t time.Time, counter int) string {
	return fmt.Sprintf("screenshot_%s_%03d_%04d.png", t.Format(sessionLayout), t.Nanosecond()/int(time.Millisecond), counter)
}

// PrepareSession creates a fresh session directory under baseDir. When the
// timestamped name is taken a numeric suffix keeps it unique.
func (w *Writer) PrepareSession(baseDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("%w: empty base directory", ErrSessionDir)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionDir, err)
	}
	name := SessionDirName(w.clock())
	for i := 1; i <= maxNameAttempts; i++ {
		dir := filepath.Join(baseDir, name)
		if i > 1 {
			dir = fmt.Sprintf("%s_%d", dir, i)
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			log.Printf("session: created %s", dir)
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %v", ErrSessionDir, err)
		}
	}
	return "", fmt.Errorf("%w: no free name for %s in %s", ErrSessionDir, name, baseDir)
}

// CaptureOne grabs rect and writes it as shot number counter. The file only
// appears under its final name once it is completely written.
func (w *Writer) CaptureOne(sessionDir string, rect screenshot.Rectangle, counter int) (string, error) {
	img, err := w.grabber.Grab(rect)
	if err != nil {
		return "", &CaptureError{Op: "grab", Err: err}
	}
	// the name records when the pixels were taken, not when the write finished
	taken := w.clock()

	tmp, err := os.CreateTemp(sessionDir, ".shot-*.tmp")
	if err != nil {
		return "", &CaptureError{Op: "create", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := w.encoder.Encode(tmp, img); err != nil {
		cleanup()
		return "", &CaptureError{Op: "encode", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", &CaptureError{Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &CaptureError{Op: "close", Err: err}
	}

	final := filepath.Join(sessionDir, ShotName(taken, counter))
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", &CaptureError{Op: "rename", Err: err}
	}
	return final, nil
}
