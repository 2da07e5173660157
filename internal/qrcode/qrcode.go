// Package qrcode renders short links as PNG QR codes.
package qrcode

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

var ErrInvalidSize = errors.New("qrcode size out of range")

// Generate encodes url as a size x size PNG with medium error correction.
func Generate(url string, size int) ([]byte, error) {
	const op = "qrcode.Generate"

	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidSize, size)
	}

	png, err := goqrcode.Encode(url, goqrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode: %w", op, err)
	}

	return png, nil
}
