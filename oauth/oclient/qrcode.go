package oclient

import (
	"fmt"
	"net/url"

	"github.com/crazy3lf/colorconv"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

// qrColor is the foreground color of authorization QR codes.
const qrColor = "#69676e"

// DefaultQRImageOptions styles the QR code written for the authorization URL.
func DefaultQRImageOptions() ([]standard.ImageOption, error) {
	c, err := colorconv.HexToColor(qrColor)
	if err != nil {
		return nil, fmt.Errorf("invalid qr color: %w", err)
	}
	return []standard.ImageOption{
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithFgColor(c),
		standard.WithQRWidth(8),
		standard.WithBorderWidth(20),
	}, nil
}

// WriteQRCode encodes rawURL as a PNG QR code at downloadPath, so the
// authorization page can be opened from another device.
func WriteQRCode(rawURL string, downloadPath string, imgOptions ...standard.ImageOption) error {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse qr url: %w", err)
	}
	qrCode, err := qrcode.NewWith(endpoint.String(),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionQuart),
	)
	if err != nil {
		return fmt.Errorf("failed to encode qr code: %w", err)
	}

	w, err := standard.New(downloadPath, imgOptions...)
	if err != nil {
		return fmt.Errorf("failed to open qr image: %w", err)
	}
	if err := qrCode.Save(w); err != nil {
		return fmt.Errorf("failed to save qr code: %w", err)
	}
	return nil
}
