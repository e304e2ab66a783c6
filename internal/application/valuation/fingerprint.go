package valuation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/propsage/compval/internal/domain/property"
)

// Fingerprint derives a stable cache key for one valuation request: the
// canonicalised subject, the request options, and the corpus snapshot
// version.  Two requests with the same fingerprint are guaranteed the same
// answer, which is what makes result caching safe.
func Fingerprint(subject property.Subject, opts Options, corpusVersion string) string {
	canon := struct {
		Subject       property.Subject `json:"subject"`
		Options       Options          `json:"options"`
		CorpusVersion string           `json:"corpus_version"`
	}{
		Subject:       canonicalSubject(subject),
		Options:       opts,
		CorpusVersion: corpusVersion,
	}

	// Field order in the struct fixes the key order in the JSON encoding,
	// so the digest is deterministic across processes.
	raw, err := json.Marshal(canon)
	if err != nil {
		// Marshalling a plain struct of scalars and slices cannot fail;
		// guard anyway so a future field change degrades to cache misses
		// rather than panics.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// canonicalSubject normalises the parts of a subject that vary without
// changing its meaning: amenity order and the string forms of condition and
// type.
func canonicalSubject(s property.Subject) property.Subject {
	s.Condition = property.ParseCondition(string(s.Condition))
	s.PropertyType = property.ParseType(string(s.PropertyType))
	if len(s.Amenities) > 1 {
		amenities := make([]property.Amenity, len(s.Amenities))
		copy(amenities, s.Amenities)
		sort.Slice(amenities, func(i, j int) bool { return amenities[i] < amenities[j] })
		s.Amenities = amenities
	}
	return s
}
