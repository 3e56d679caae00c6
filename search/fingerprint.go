package search

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/jonwraymond/toolragflow/metadata"
)

// computeFingerprint generates a stable hash of a document listing.
// The fingerprint changes when any indexed field changes, enabling
// efficient cache invalidation for the per-dataset index.
func computeFingerprint(docs metadata.DocumentIndex) string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	h := sha256.New()
	for _, id := range ids {
		doc := docs[id]

		h.Write([]byte(id))
		h.Write([]byte{0}) // separator

		h.Write([]byte(doc.Name))
		h.Write([]byte{0})
		h.Write([]byte(doc.Type))
		h.Write([]byte{0})
		h.Write([]byte(doc.Location))
		h.Write([]byte{0})
		h.Write([]byte(doc.UpdateDate))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(doc.Size, 10)))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
