// Package ingest validates and stores user-uploaded media files.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
)

var (
	// ErrNoFile means the request carried no file part, or an empty filename
	ErrNoFile = errors.New("No file uploaded")

	// ErrUnsupportedExtension means the file's extension is not in the
	// allow-list for its media kind. Wrapped errors name the allowed set.
	ErrUnsupportedExtension = errors.New("Unsupported file extension")
)

type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// AllowedExtensions returns the lowercase extension allow-list for the kind
func (k MediaKind) AllowedExtensions() []string {
	if k == KindVideo {
		return []string{"mp4"}
	}
	return []string{"png", "jpg", "jpeg"}
}

// UploadedMedia is a successfully ingested upload, stored on disk.
// It is owned by the pipeline invocation that created it; the retention
// sweeper cleans up stored files that outlive their invocation.
type UploadedMedia struct {
	OriginalName  string
	SanitizedName string
	StoredPath    string
	Kind          MediaKind
}

// Ingestor persists uploads into a working-storage directory.
type Ingestor struct {
	log           logs.Log
	root          string
	maxUploadSize int64
}

func NewIngestor(log logs.Log, root string, maxUploadSize int64) (*Ingestor, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create upload directory %v: %w", absRoot, err)
	}
	return &Ingestor{
		log:           log,
		root:          absRoot,
		maxUploadSize: maxUploadSize,
	}, nil
}

func (ing *Ingestor) Root() string {
	return ing.root
}

// IngestRequest pulls the named file part out of a multipart form request
// and ingests it.
func (ing *Ingestor) IngestRequest(r *http.Request, field string, kind MediaKind) (*UploadedMedia, error) {
	if ing.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, ing.maxUploadSize)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, ErrNoFile
	}
	defer file.Close()
	return ing.Ingest(file, header.Filename, kind)
}

// Ingest validates the filename and extension, and writes the content into
// the upload directory under the sanitized name. A prior file of the same
// name is overwritten (last write wins).
func (ing *Ingestor) Ingest(content io.Reader, filename string, kind MediaKind) (*UploadedMedia, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrNoFile
	}
	sanitized := SanitizeFilename(filename)
	if sanitized == "" {
		return nil, ErrNoFile
	}
	ext := ""
	if dot := strings.LastIndex(sanitized, "."); dot >= 0 {
		ext = strings.ToLower(sanitized[dot+1:])
	}
	allowed := kind.AllowedExtensions()
	ok := false
	for _, a := range allowed {
		if ext == a {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w. Allowed %v types are: %v", ErrUnsupportedExtension, kind, strings.Join(allowed, ", "))
	}

	storedPath := filepath.Join(ing.root, sanitized)
	f, err := os.OpenFile(storedPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err == nil {
		err = errClose
	}
	if err != nil {
		os.Remove(storedPath)
		return nil, err
	}
	ing.log.Infof("Ingested %v upload %v -> %v", kind, filename, storedPath)
	return &UploadedMedia{
		OriginalName:  filename,
		SanitizedName: sanitized,
		StoredPath:    storedPath,
		Kind:          kind,
	}, nil
}

// SanitizeFilename strips path components and replaces every character
// outside [A-Za-z0-9._-] with an underscore, so the result is always safe to
// join onto a storage directory. Leading dots are trimmed so an upload can
// never become a hidden file or a relative path trick.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return strings.TrimLeft(string(out), ".")
}
