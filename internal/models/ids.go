package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/maneesh/filesmanager/internal/common"
)

// UserID identifies a user; ids are positive
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseUserID parses a decimal user id
func ParseUserID(s string) (UserID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, err
	}
	return UserID(n), nil
}

// FileID identifies a file node; ids are positive
type FileID int64

func (id FileID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseFileID parses a decimal file id
func ParseFileID(s string) (FileID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, err
	}
	return FileID(n), nil
}

func parsePositive(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, common.NewValidationError("invalid id")
	}
	return n, nil
}

// ParentRef is either the root or a folder node
type ParentRef struct {
	node FileID
}

// Root is the canonical root parent
func Root() ParentRef {
	return ParentRef{}
}

// Node references the folder with the given id
func Node(id FileID) ParentRef {
	return ParentRef{node: id}
}

// IsRoot reports whether the reference is the root
func (p ParentRef) IsRoot() bool {
	return p.node == 0
}

// Node returns the folder id and true when the reference is not the root
func (p ParentRef) Node() (FileID, bool) {
	return p.node, p.node != 0
}

// Storage returns the value persisted in parent columns; root is 0
func (p ParentRef) Storage() int64 {
	return int64(p.node)
}

// ParentFromStorage is the inverse of Storage
func ParentFromStorage(v int64) ParentRef {
	return ParentRef{node: FileID(v)}
}

// ParseParentRef accepts "", "0" or a positive id
func ParseParentRef(s string) (ParentRef, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return Root(), nil
	}
	id, err := ParseFileID(s)
	if err != nil {
		return ParentRef{}, common.NewValidationError("Parent not found")
	}
	return Node(id), nil
}

func (p ParentRef) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(p.node), 10)), nil
}

// UnmarshalJSON accepts a number or a numeric string
func (p *ParentRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = Root()
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	ref, err := ParseParentRef(raw)
	if err != nil {
		return err
	}
	*p = ref
	return nil
}
