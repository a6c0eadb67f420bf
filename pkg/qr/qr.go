// Package qr renders share links as QR codes.
package qr

import (
	"encoding/base64"
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// Medium error correction, same level the card has always used.
const level = qrcode.Medium

// PNG encodes content as a size x size PNG.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr: empty content")
	}
	b, err := qrcode.Encode(content, level, size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return b, nil
}

// DataURL returns the QR code as an embeddable data:image/png URL.
func DataURL(content string, size int) (string, error) {
	b, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}

func Image(content string, size int) (image.Image, error) {
	q, err := qrcode.New(content, level)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return q.Image(size), nil
}
