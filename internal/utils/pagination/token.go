package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const fieldSeparator = "|"

// EncodeMultiFieldToken creates an opaque continuation token from any number of string fields.
func EncodeMultiFieldToken(fields ...string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, fieldSeparator)))
}

// DecodeMultiFieldToken decodes a token into its component fields.
func DecodeMultiFieldToken(token string) ([]string, error) {
	decodedBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	return strings.Split(string(decodedBytes), fieldSeparator), nil
}

// EncodeKeyToken creates a keyset token from the sort key and primary key of the last row returned.
func EncodeKeyToken(sortKey, pk string) string {
	return EncodeMultiFieldToken(sortKey, pk)
}

// DecodeKeyToken parses a keyset token back into sort key and primary key.
func DecodeKeyToken(token string) (string, string, error) {
	parts, err := DecodeMultiFieldToken(token)
	if err != nil {
		return "", "", err
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pagination token format (split)")
	}
	return parts[0], parts[1], nil
}

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
