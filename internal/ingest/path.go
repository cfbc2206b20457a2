package ingest

import (
	"path"
	"strings"
)

const videoContentTypePrefix = "video/"

// Object is the storage object whose finalize event starts an invocation.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
	Generation  string
}

// ObjectPath is the parsed `{prefix}/{courseId}/{fileName}` shape.
type ObjectPath struct {
	Prefix   string
	CourseID string
	FileName string
}

// ParseObjectPath splits name into exactly three non-empty segments under the
// given prefix. Anything else reports ok=false.
func ParseObjectPath(prefix, name string) (ObjectPath, bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 {
		return ObjectPath{}, false
	}
	for _, p := range parts {
		if p == "" {
			return ObjectPath{}, false
		}
	}
	if parts[0] != strings.Trim(prefix, "/") {
		return ObjectPath{}, false
	}
	return ObjectPath{Prefix: parts[0], CourseID: parts[1], FileName: parts[2]}, true
}

// IsVideoContentType reports whether a storage content type is a video.
func IsVideoContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), videoContentTypePrefix)
}

// baseName is the scratch file name for an object; it never contains a
// separator even for hostile object names.
func baseName(name string) string {
	b := path.Base(name)
	if b == "." || b == "/" || b == ".." || b == "" {
		return "video"
	}
	return b
}
