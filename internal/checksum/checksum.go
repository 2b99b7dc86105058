// Package checksum provides the content hash used for idempotent publishing.
package checksum

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Content returns the hex-encoded FNV-1a digest of the JSON serialization
// of v. Cheap and non-cryptographic: it only guards against republishing
// identical content, not against adversarial collisions.
func Content(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Content trees are plain data; marshal failure means a programming
		// error upstream. Hash the error text so the result is still stable.
		data = []byte(err.Error())
	}
	h := fnv.New32a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum32())
}
