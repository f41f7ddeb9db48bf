package yahoo

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// acceptEncoding is sent explicitly, which turns off the transport's own gzip
// handling; Decompress covers both encodings instead.
const acceptEncoding = "gzip, br"

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress is a resty after-response hook that replaces a brotli or gzip
// encoded body with its decoded bytes.
func Decompress(_ *resty.Client, resp *resty.Response) error {
	var reader io.Reader
	switch resp.Header().Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(bytes.NewReader(resp.Body()))
	case "gzip":
		// resty already inflates gzip bodies itself but keeps the header.
		if !bytes.HasPrefix(resp.Body(), gzipMagic) {
			resp.Header().Del("Content-Encoding")
			return nil
		}
		gz, err := gzip.NewReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	default:
		return nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	resp.SetBody(decompressed)
	resp.Header().Del("Content-Encoding")
	return nil
}
