// Package folders contains the remote folder service that holds the material belonging to a performance.
// A folder is a key prefix inside an object storage bucket, marked by a small marker object.
package folders

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MarkerName is the name of the object marking a folder as existing
	MarkerName = ".folder"
	// MarkerContentType is the content type the marker object is stored with
	MarkerContentType = "application/json"

	maxSlugLength = 48
	suffixLength  = 8
	fallbackSlug  = "performance"
)

// Service creates and deletes remote folders
type Service interface {
	// CreateFolder creates a new folder named after the given title and returns its ID.
	// An empty ID without an error means that no folder has been created.
	CreateFolder(ctx context.Context, name string) (string, error)
	// DeleteFolder removes the folder with the given ID including its contents.
	// It returns false if there was nothing to delete.
	DeleteFolder(ctx context.Context, folderID string) (bool, error)
}

// Disabled is the folder service used when no storage backend is configured. It never creates anything.
type Disabled struct{}

// CreateFolder implements Service
func (Disabled) CreateFolder(ctx context.Context, name string) (string, error) {
	return "", nil
}

// DeleteFolder implements Service
func (Disabled) DeleteFolder(ctx context.Context, folderID string) (bool, error) {
	return false, nil
}

// Marker is the content of the marker object
type Marker struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMarker creates the JSON body of the marker object for a folder with the given display name
func NewMarker(name string, now time.Time) ([]byte, error) {
	return json.Marshal(Marker{Name: name, CreatedAt: now.UTC()})
}

// Slug turns a performance title into a string usable inside an object key
func Slug(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, title)
	if err != nil {
		plain = title
	}
	plain = cases.Lower(language.Und).String(plain)
	var sb strings.Builder
	dash := false
	for _, r := range plain {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
		if sb.Len() >= maxSlugLength {
			break
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// NewID generates a new, unique folder ID for the given title
func NewID(title string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
	return Slug(title) + "-" + suffix
}

// ValidID checks if the given folder ID can be used as a single key segment
func ValidID(folderID string) bool {
	return folderID != "" && folderID != "." && folderID != ".." && !strings.ContainsAny(folderID, "/\\")
}

// Prefix returns the key prefix of the folder with the given ID below the given parent
func Prefix(parent, folderID string) string {
	return strings.TrimPrefix(path.Join(parent, folderID), "/") + "/"
}

// MarkerKey returns the key of the marker object of the folder with the given ID
func MarkerKey(parent, folderID string) string {
	return Prefix(parent, folderID) + MarkerName
}
