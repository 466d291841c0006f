package oclient

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteQRCode(t *testing.T) {
	opts, err := DefaultQRImageOptions()
	if err != nil {
		t.Fatalf("DefaultQRImageOptions: %v", err)
	}
	path := filepath.Join(t.TempDir(), "login.png")
	if err := WriteQRCode("https://oauth2.sky.blackbaud.com/authorization?client_id=abc", path, opts...); err != nil {
		t.Fatalf("WriteQRCode: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read qr code: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("qr code is not a png; header %q", b[:min(8, len(b))])
	}
}

func TestWriteQRCode_BadURL(t *testing.T) {
	if err := WriteQRCode("://bad", filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("expected an error for an unparsable url")
	}
}
