package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type offsetCursor struct {
	Offset int `json:"o"`
}

// EncodeOffset serialises the offset into a base64 URL-safe page token.
func EncodeOffset(offset int) string {
	if offset <= 0 {
		return ""
	}
	data, _ := json.Marshal(offsetCursor{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeOffset parses a token produced by EncodeOffset. Empty tokens decode to zero.
func DecodeOffset(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor offsetCursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor.Offset, nil
}
