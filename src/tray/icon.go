package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	frameColor  = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	lensColor   = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	pausedColor = color.NRGBA{R: 0xe0, G: 0x8a, B: 0x00, A: 0xff}
)

// drawIcon renders a dashed selection frame around a camera lens.
func drawIcon(accent color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	for i := 2; i < iconSize-2; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for _, w := range []int{2, 3} {
			img.Set(i, w, accent)
			img.Set(i, iconSize-1-w, accent)
			img.Set(w, i, accent)
			img.Set(iconSize-1-w, i, accent)
		}
	}
	c := iconSize / 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := x-c, y-c
			d := dx*dx + dy*dy
			switch {
			case d <= 9:
				img.Set(x, y, accent)
			case d <= 49:
				img.Set(x, y, lensColor)
			}
		}
	}
	return img
}

// icons encodes the running and paused icons once per process.
var icons = sync.OnceValues(func() (running, paused []byte) {
	return iconBytes(frameColor), iconBytes(pausedColor)
})

func icon(paused bool) []byte {
	running, p := icons()
	if paused {
		return p
	}
	return running
}

// iconBytes returns the icon in the format the platform tray expects:
// ICO (with an embedded PNG) on Windows, PNG elsewhere.
func iconBytes(accent color.Color) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, drawIcon(accent)); err != nil {
		return nil
	}
	if runtime.GOOS == "windows" {
		return wrapICO(buf.Bytes(), iconSize)
	}
	return buf.Bytes()
}

// wrapICO builds a single-image ICO file around PNG data.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	header := struct {
		Reserved, Type, Count uint16
	}{0, 1, 1}
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size % 256),
		Height:   uint8(size % 256),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, binary.LittleEndian, header)
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
