// Package record contains the data shapes moving through the pipeline:
// raw provider documents, canonical records persisted by harvesters, mapped
// records produced by crosswalks, and the activities that generated them.
package record

import (
	"encoding/base32"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/miku/heron/schema/aggregation"
)

var (
	// ErrMissingProvenance signals that a mapped record has no originating
	// canonical record, or only an unaddressable placeholder for one.
	ErrMissingProvenance = errors.New("missing originating record")
	// ErrAmbiguousProvenance signals that a mapped record has more than one
	// originating record attached, so no definitive identifier can be derived.
	ErrAmbiguousProvenance = errors.New("more than one originating record")
)

// Namespace for name based ids, fixed so that re-harvesting an unchanged
// provider record always yields the same local name.
var Namespace = uuid.MustParse("8d1669cd-7fcd-4909-99f9-e939e07ecb4a")

// Locator pairs a provider native identifier with the canonical address of a
// stored record. It is enough to dereference the stored copy without going
// back to the original source.
type Locator struct {
	ProviderID string `json:"provider_id"`
	URI        string `json:"uri"`
}

// RawDoc is the provider native representation of one record as returned by
// a remote source: the provider identifier plus the serialized document.
// Transient, only exists during a harvest pass.
type RawDoc struct {
	ID   string
	Data []byte
}

// Canonical is the unit persisted by a harvester: a minted local identifier,
// content serialized in a declared content type, and linkage back to the
// source.
type Canonical struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	ProviderID  string `json:"provider_id"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
	GeneratedBy string `json:"generated_by,omitempty"`
}

// Subject returns the canonical address of the record.
func (c *Canonical) Subject() string { return c.URI }

// Generator returns the URI of the activity that generated this record.
func (c *Canonical) Generator() string { return c.GeneratedBy }

// Provider returns the provider native identifier.
func (c *Canonical) Provider() string { return c.ProviderID }

// Locator returns a locator for the stored record.
func (c *Canonical) Locator() Locator {
	return Locator{ProviderID: c.ProviderID, URI: c.URI}
}

// Build assembles a canonical record for a raw document under a container
// URI, minting the local identifier from the provider identifier.
func Build(doc RawDoc, container, contentType string) Canonical {
	id := MintID(doc.ID)
	return Canonical{
		ID:          id,
		URI:         container + "/" + id,
		ProviderID:  doc.ID,
		Content:     doc.Data,
		ContentType: contentType,
	}
}

// Mapped is the output of a mapping agent: a record in the target schema
// with a minted identifier, exactly one link to its originating canonical
// record and a provenance statement naming the generating activity.
type Mapped struct {
	ID          string                  `json:"id"`
	URI         string                  `json:"uri"`
	Sources     []Locator               `json:"sources"`
	GeneratedBy string                  `json:"generated_by,omitempty"`
	Aggregation aggregation.Aggregation `json:"aggregation"`
}

// Subject returns the canonical address of the record, empty before minting.
func (m *Mapped) Subject() string { return m.URI }

// Generator returns the URI of the activity that generated this record.
func (m *Mapped) Generator() string { return m.GeneratedBy }

// Provider returns the provider identifier of the single originating record,
// empty if provenance is missing or ambiguous.
func (m *Mapped) Provider() string {
	if len(m.Sources) != 1 {
		return ""
	}
	return m.Sources[0].ProviderID
}

// MintID derives the identifier for a mapped record under a container URI
// from the local name of its single originating record. It fails when the
// originating record is absent, unaddressable, or not unique; ambiguity is
// never resolved by picking the first match.
func (m *Mapped) MintID(container string) error {
	switch {
	case len(m.Sources) == 0:
		return ErrMissingProvenance
	case len(m.Sources) > 1:
		return ErrAmbiguousProvenance
	}
	name := LocalName(m.Sources[0].URI)
	if name == "" {
		return ErrMissingProvenance
	}
	m.ID = name
	m.URI = container + "/" + name
	return nil
}

// MintID deterministically derives a local identifier from a provider native
// identifier: a name based (SHA1) UUID rendered the compact way, 26 chars of
// lowercase base32. Same input, same output, so harvesting is re-runnable.
func MintID(providerID string) string {
	u := uuid.NewSHA1(Namespace, []byte(providerID))
	b, _ := u.MarshalBinary()
	return strings.ToLower(base32.StdEncoding.EncodeToString(b))[:26]
}

// LocalName returns the final path segment of a record URI with any file
// extension stripped, or the empty string for unaddressable values.
func LocalName(uri string) string {
	base := path.Base(strings.TrimRight(uri, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.Index(base, "."); i != -1 {
		base = base[:i]
	}
	return base
}
