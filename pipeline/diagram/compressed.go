package diagram

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/flate"
)

// maxInflated bounds a single decompressed diagram body.
const maxInflated = 32 << 20

// inflate decodes a compressed <diagram> body: base64, raw DEFLATE, then URI-encoded XML.
func inflate(body string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}

	zr := flate.NewReader(bytes.NewReader(raw))
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("inflate body: %w", err)
	}
	if len(data) > maxInflated {
		return nil, fmt.Errorf("inflated body exceeds %d bytes", maxInflated)
	}

	// 旧版本导出未做 URI 编码
	if s, err := url.PathUnescape(string(data)); err == nil {
		return []byte(s), nil
	}
	return data, nil
}
