package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ListingTimeLayout is the creation time format shown by the file server listing
const ListingTimeLayout = "2006-01-02 15:04"

const (
	kibiBytes uint64 = 1024
	mebiBytes        = kibiBytes * 1024
	gibiBytes        = mebiBytes * 1024
)

// RemoteFileInfo is one entry of a remote directory listing
type RemoteFileInfo struct {
	Name          string
	DirectoryPath string
	SizeBytes     uint64
	CreatedAt     time.Time
}

// NewRemoteFileInfo validates and builds a listing entry
func NewRemoteFileInfo(name, dirPath string, size uint64, createdAt time.Time) (*RemoteFileInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidFileInfo)
	}
	if strings.TrimSpace(dirPath) == "" {
		return nil, fmt.Errorf("%w: directory path cannot be empty", ErrInvalidFileInfo)
	}
	if createdAt.IsZero() {
		return nil, fmt.Errorf("%w: created cannot be the zero time", ErrInvalidFileInfo)
	}

	return &RemoteFileInfo{
		Name:          name,
		DirectoryPath: dirPath,
		SizeBytes:     size,
		CreatedAt:     createdAt,
	}, nil
}

// FullPath joins the directory and the name
func (f *RemoteFileInfo) FullPath() string {
	return f.DirectoryPath + "/" + f.Name
}

// ParseSizeShorthand decodes listing sizes such as "42", "10K", "2Mi" or "1G".
// Units are binary multiples and case-insensitive; anything after the unit
// letter ("i", "iB", "B") is ignored.
func ParseSizeShorthand(text string) (uint64, error) {
	value := strings.ToUpper(strings.TrimSpace(text))
	if value == "" {
		return 0, fmt.Errorf("%w: empty size", ErrDecode)
	}

	digits := value
	multiplier := uint64(1)
	if idx := strings.IndexAny(value, "KMG"); idx >= 0 {
		digits = strings.TrimSpace(value[:idx])
		switch value[idx] {
		case 'K':
			multiplier = kibiBytes
		case 'M':
			multiplier = mebiBytes
		case 'G':
			multiplier = gibiBytes
		}
	} else {
		digits = strings.TrimSuffix(value, "B")
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size %q: %v", ErrDecode, text, err)
	}

	if n > math.MaxUint64/multiplier {
		return 0, fmt.Errorf("%w: size %q overflows", ErrDecode, text)
	}
	return n * multiplier, nil
}
