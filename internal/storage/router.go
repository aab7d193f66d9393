package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Router = (*SegmentRouter)(nil)

// SegmentRouter names segment objects within a session prefix.
type SegmentRouter struct {
	extension string
}

// NewSegmentRouter creates a router for segments stored with compression c.
func NewSegmentRouter(c encoder.Compression) *SegmentRouter {
	return &SegmentRouter{extension: ".ti" + c.Extension()}
}

// Route returns the object key for a segment.
// Format: prefix/segment-NNNNNN.ti[.zst|.lz4|.gz]
func (r *SegmentRouter) Route(prefix string, sequence int64) string {
	name := fmt.Sprintf("segment-%06d%s", sequence, r.extension)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// SessionPrefix joins a base key and a session identifier.
func SessionPrefix(base, sessionID string) string {
	base = strings.Trim(base, "/")
	if base == "" {
		return sessionID
	}
	return path.Join(base, sessionID)
}

// ObjectKey strips a scheme://bucket/ prefix from path, if present.
// Paths like s3://bucket/captures/run1 and captures/run1 both yield
// captures/run1.
func ObjectKey(p, scheme string) string {
	key := p
	if scheme != "" && strings.HasPrefix(p, scheme+"://") {
		withoutScheme := strings.TrimPrefix(p, scheme+"://")
		parts := strings.SplitN(withoutScheme, "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	return strings.Trim(key, "/")
}
