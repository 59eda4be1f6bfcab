package codec

import "image"

// alphaLevels maps an alpha quality to the number of alpha levels kept:
// quality [0, 70] -> levels [2, 16], quality ]70, 100] -> levels ]16, 256].
func alphaLevels(quality int) int {
	if quality <= 70 {
		return 2 + quality/5
	}
	return 16 + (quality-70)*8
}

// reduceAlpha returns img with its alpha plane quantised for the given
// quality, or img itself when nothing needs to change. The input is never
// modified.
func reduceAlpha(img *image.NRGBA, quality int) *image.NRGBA {
	if quality >= 100 {
		return img
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	alpha := make([]byte, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			alpha[y*w+x] = row[x*4+3]
		}
	}
	if !quantizeLevels(alpha, alphaLevels(quality)) {
		return img
	}
	out := image.NewNRGBA(img.Rect)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out.Pix[y*out.Stride:]
		copy(dst, src)
		for x := 0; x < w; x++ {
			dst[x*4+3] = alpha[y*w+x]
		}
	}
	return out
}

// quantizeLevels reduces data to at most numLevels distinct values with a
// few k-means iterations over the value histogram. It reports whether data
// was changed.
func quantizeLevels(data []byte, numLevels int) bool {
	if numLevels < 2 || numLevels > 256 || len(data) == 0 {
		return false
	}

	const (
		numSymbols   = 256
		maxIter      = 6
		errThreshold = 1e-4
	)

	var freq [numSymbols]int
	minS, maxS := 255, 0
	distinct := 0
	for _, v := range data {
		if freq[v] == 0 {
			distinct++
		}
		minS = min(minS, int(v))
		maxS = max(maxS, int(v))
		freq[v]++
	}
	if distinct <= numLevels {
		return false
	}

	// Start with uniformly spread centroids.
	var centroid [numSymbols]float64
	var slotOf [numSymbols]int
	for i := 0; i < numLevels; i++ {
		centroid[i] = float64(minS) + float64(maxS-minS)*float64(i)/float64(numLevels-1)
	}

	threshold := errThreshold * float64(len(data))
	lastErr := 1e38
	for iter := 0; iter < maxIter; iter++ {
		var sum, count [numSymbols]float64
		slot := 0
		for s := minS; s <= maxS; s++ {
			for slot < numLevels-1 && 2*float64(s) > centroid[slot]+centroid[slot+1] {
				slot++
			}
			if freq[s] > 0 {
				sum[slot] += float64(s) * float64(freq[s])
				count[slot] += float64(freq[s])
			}
			slotOf[s] = slot
		}
		// The extreme levels stay pinned so fully opaque and fully
		// transparent pixels keep their values.
		for slot = 1; slot < numLevels-1; slot++ {
			if count[slot] > 0 {
				centroid[slot] = sum[slot] / count[slot]
			}
		}
		var err float64
		for s := minS; s <= maxS; s++ {
			e := float64(s) - centroid[slotOf[s]]
			err += float64(freq[s]) * e * e
		}
		if lastErr-err < threshold {
			break
		}
		lastErr = err
	}

	var remap [numSymbols]byte
	for s := minS; s <= maxS; s++ {
		remap[s] = byte(centroid[slotOf[s]] + 0.5)
	}
	for i, v := range data {
		data[i] = remap[v]
	}
	return true
}
