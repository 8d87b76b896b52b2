// Package phash computes perceptual fingerprints for near-duplicate receipt
// detection. The hash is an 8x8 average hash: resize to 8x8 grayscale, then
// set one bit per sample depending on whether it sits above the mean. Two
// hashes are compared by Hamming distance; re-encoding the same photograph at
// a different resolution or JPEG quality moves the distance only a few bits.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// Bits is the size of the fingerprint.
	Bits = 64
	// HexLen is the length of the canonical hex encoding.
	HexLen = 16
)

// Hash is a 64-bit perceptual fingerprint.
type Hash uint64

// FromBytes decodes an encoded image and computes its fingerprint.
func FromBytes(data []byte) (Hash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage computes the fingerprint of a decoded image. Deterministic: the
// same pixels always produce the same hash.
func FromImage(img image.Image) Hash {
	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for i := 0; i < 64; i++ {
		sum += int(small.Pix[i])
	}
	mean := float64(sum) / 64

	var h Hash
	for i := 0; i < 64; i++ {
		if float64(small.Pix[i]) >= mean {
			h |= 1 << (63 - i)
		}
	}
	return h
}

// Distance returns the Hamming distance to another hash, in [0, 64].
func (h Hash) Distance(other Hash) int {
	return bits.OnesCount64(uint64(h ^ other))
}

// String renders the canonical 16-character lowercase hex form.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Parse reads a hash back from its 16-character hex form.
func Parse(s string) (Hash, error) {
	if len(s) != HexLen {
		return 0, fmt.Errorf("phash: want %d hex chars, got %d", HexLen, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("phash: %w", err)
	}
	return Hash(v), nil
}
