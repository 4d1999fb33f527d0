package models

import (
	"fmt"
	"time"
)

// Kind is the type of a file node
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
	KindImage  Kind = "image"
)

// ParseKind validates a raw kind string
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindFolder, KindFile, KindImage:
		return k, true
	}
	return "", false
}

// HasContent reports whether nodes of this kind carry bytes in the content store
func (k Kind) HasContent() bool {
	return k == KindFile || k == KindImage
}

// User represents an account stored in the metadata store
type User struct {
	ID             UserID    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"-"`
}

// Session binds an opaque token to a user until ExpiresAt
type Session struct {
	UserID    UserID    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// FileNode is the metadata record for a folder, file or image
type FileNode struct {
	ID         FileID    `json:"id"`
	OwnerID    UserID    `json:"userId"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"type"`
	Parent     ParentRef `json:"parentId"`
	IsPublic   bool      `json:"isPublic"`
	StorageRef string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// ThumbnailRef returns the content store key of the rendition at width
func (f *FileNode) ThumbnailRef(width int) string {
	return ThumbnailRef(f.StorageRef, width)
}

// ThumbnailRef derives a thumbnail key from the original storage ref
func ThumbnailRef(storageRef string, width int) string {
	return fmt.Sprintf("%s_%d", storageRef, width)
}

// ThumbnailJob asks the pipeline to derive renditions of an uploaded image
type ThumbnailJob struct {
	FileID  FileID `json:"fileId"`
	OwnerID UserID `json:"userId"`
}

// Variant selects which artifact of a file is read
type Variant struct {
	width int
}

// Original is the uploaded bytes
func Original() Variant {
	return Variant{}
}

// Thumbnail is the rendition resized to width
func Thumbnail(width int) Variant {
	return Variant{width: width}
}

// IsThumbnail returns the width and true for thumbnail variants
func (v Variant) IsThumbnail() (int, bool) {
	return v.width, v.width > 0
}

// Key resolves the content store key for this variant of storageRef
func (v Variant) Key(storageRef string) string {
	if w, ok := v.IsThumbnail(); ok {
		return ThumbnailRef(storageRef, w)
	}
	return storageRef
}
