package animation

import (
	"bytes"
	"image"
)

// isCanvasIdentical reports whether every pixel in a and b is identical.
// Both images must have the same dimensions.
func isCanvasIdentical(a, b *image.NRGBA) bool {
	if a == nil || b == nil {
		return false
	}
	return bytes.Equal(a.Pix, b.Pix)
}

// findChangedRect returns the bounding rectangle of the pixels that differ
// between prev and curr, or an empty rectangle when they are identical.
func findChangedRect(prev, curr *image.NRGBA) image.Rectangle {
	w, h := prev.Rect.Dx(), prev.Rect.Dy()
	rowLen := w * 4
	row := func(img *image.NRGBA, y int) []byte {
		return img.Pix[y*img.Stride : y*img.Stride+rowLen]
	}

	minY := 0
	for minY < h && bytes.Equal(row(prev, minY), row(curr, minY)) {
		minY++
	}
	if minY == h {
		return image.Rectangle{}
	}
	maxY := h
	for maxY > minY+1 && bytes.Equal(row(prev, maxY-1), row(curr, maxY-1)) {
		maxY--
	}

	minX, maxX := w, 0
	for y := minY; y < maxY && (minX > 0 || maxX < w); y++ {
		p, c := row(prev, y), row(curr, y)
		for x := 0; x < minX; x++ {
			if !bytes.Equal(p[x*4:x*4+4], c[x*4:x*4+4]) {
				minX = x
				break
			}
		}
		for x := w - 1; x >= maxX; x-- {
			if !bytes.Equal(p[x*4:x*4+4], c[x*4:x*4+4]) {
				maxX = x + 1
				break
			}
		}
	}
	if maxX <= minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// snapToEven moves odd offsets down by one pixel and grows the rectangle to
// compensate; ANMF offsets are stored halved.
func snapToEven(r image.Rectangle) image.Rectangle {
	w := r.Dx() + r.Min.X&1
	h := r.Dy() + r.Min.Y&1
	minX, minY := r.Min.X&^1, r.Min.Y&^1
	return image.Rect(minX, minY, minX+w, minY+h)
}

// extractSubImage copies the pixels of src inside rect into a new image
// anchored at the origin.
func extractSubImage(src *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	w, h := rect.Dx(), rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcOff := src.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src.Pix[srcOff:srcOff+w*4])
	}
	return dst
}

// cloneNRGBA creates a deep copy of an NRGBA image anchored at the origin.
func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	return extractSubImage(src, src.Rect)
}
