// ABOUTME: File attachment encoding for outgoing exchanges
// ABOUTME: Reads local files into base64 data URIs with a detected media type

package attachment

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/coven-chat/internal/store"
)

// MaxFileSize caps attachment payloads. The encoded form is inlined in
// the request body, so large files are rejected up front.
const MaxFileSize = 10 << 20

// FromFile reads the file at path and encodes it as an attachment
// reference. The media type comes from the file extension, falling back
// to content sniffing for unknown extensions.
func FromFile(path string) (store.FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return store.FileRef{}, fmt.Errorf("inspecting attachment: %w", err)
	}
	if info.IsDir() {
		return store.FileRef{}, fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return store.FileRef{}, fmt.Errorf("attachment %s is %d bytes, limit is %d", path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return store.FileRef{}, fmt.Errorf("reading attachment: %w", err)
	}

	mediaType := detectMediaType(path, data)
	encoded := base64.StdEncoding.EncodeToString(data)

	return store.FileRef{
		DataURI:   fmt.Sprintf("data:%s;base64,%s", mediaType, encoded),
		FileName:  filepath.Base(path),
		MediaType: mediaType,
	}, nil
}

func detectMediaType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		// Strip any charset parameter; the data URI carries raw bytes.
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return http.DetectContentType(data)
}
