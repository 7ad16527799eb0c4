package blackboard

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// computeETag fingerprints data as xxhash64 over its canonical JSON
// encoding, rendered as 16 hex characters. Equal data always yields an
// equal tag; callers only ever compare tags for equality.
func computeETag(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw)), nil
}
