package service

import (
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

const maxNameLen = 100

// NewStorageKey returns a fresh key "<driver>/<type>/<uuid>-<name>". Keys are
// never reused, so a re-submission always lands on a new object.
func NewStorageKey(driverID string, t compliance.ArtifactType, originalName string) string {
	return driverID + "/" + string(t) + "/" + uuid.NewString() + "-" + SanitizeFileName(originalName)
}

// SanitizeFileName keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	if name == "" {
		return "file"
	}
	return name
}

func normalizeMime(m string) string {
	mt, _, err := mime.ParseMediaType(m)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(m))
	}
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	return mt
}
