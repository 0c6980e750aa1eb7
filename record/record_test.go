package record

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMintID(t *testing.T) {
	var cases = []struct {
		about      string
		providerID string
		want       string
	}{
		{
			about:      "plain identifier",
			providerID: "oai:example.org:123",
			want:       MintID("oai:example.org:123"),
		},
		{
			about:      "empty input still mints",
			providerID: "",
			want:       MintID(""),
		},
	}
	for _, c := range cases {
		got := MintID(c.providerID)
		if got != c.want {
			t.Fatalf("[%s] got %v, want %v (not deterministic)", c.about, got, c.want)
		}
		if len(got) != 26 {
			t.Fatalf("[%s] got id of length %d, want 26: %s", c.about, len(got), got)
		}
		for _, r := range got {
			if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
				t.Fatalf("[%s] unexpected char %q in %s", c.about, r, got)
			}
		}
	}
	if MintID("a") == MintID("b") {
		t.Fatalf("distinct provider ids must mint distinct local names")
	}
}

func TestBuild(t *testing.T) {
	doc := RawDoc{ID: "rec-1", Data: []byte(`{"id": "rec-1"}`)}
	got := Build(doc, "http://localhost/heron/records", "application/json")
	want := Canonical{
		ID:          MintID("rec-1"),
		URI:         "http://localhost/heron/records/" + MintID("rec-1"),
		ProviderID:  "rec-1",
		Content:     []byte(`{"id": "rec-1"}`),
		ContentType: "application/json",
	}
	if !cmp.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	again := Build(doc, "http://localhost/heron/records", "application/json")
	if got.URI != again.URI {
		t.Fatalf("rebuilding the same doc minted a different address: %v, %v", got.URI, again.URI)
	}
}

func TestMappedMintID(t *testing.T) {
	var cases = []struct {
		about   string
		sources []Locator
		err     error
		wantID  string
	}{
		{
			about:   "single source",
			sources: []Locator{{ProviderID: "x", URI: "http://localhost/heron/records/abc123"}},
			err:     nil,
			wantID:  "abc123",
		},
		{
			about:   "extension stripped",
			sources: []Locator{{URI: "http://localhost/heron/records/abc123.json"}},
			err:     nil,
			wantID:  "abc123",
		},
		{
			about:   "no source",
			sources: nil,
			err:     ErrMissingProvenance,
		},
		{
			about: "two sources",
			sources: []Locator{
				{URI: "http://localhost/heron/records/a"},
				{URI: "http://localhost/heron/records/b"},
			},
			err: ErrAmbiguousProvenance,
		},
		{
			about:   "unaddressable source",
			sources: []Locator{{URI: ""}},
			err:     ErrMissingProvenance,
		},
	}
	for _, c := range cases {
		m := Mapped{Sources: c.sources}
		err := m.MintID("http://localhost/heron/items")
		if !errors.Is(err, c.err) {
			t.Fatalf("[%s] got %v, want %v", c.about, err, c.err)
		}
		if c.err != nil {
			if m.ID != "" || m.URI != "" {
				t.Fatalf("[%s] failed minting must not set an id, got %v, %v", c.about, m.ID, m.URI)
			}
			continue
		}
		if m.ID != c.wantID {
			t.Fatalf("[%s] got %v, want %v", c.about, m.ID, c.wantID)
		}
		if want := "http://localhost/heron/items/" + c.wantID; m.URI != want {
			t.Fatalf("[%s] got %v, want %v", c.about, m.URI, want)
		}
	}
}

func TestLocalName(t *testing.T) {
	var cases = []struct {
		uri  string
		want string
	}{
		{"http://localhost/heron/records/abc123", "abc123"},
		{"http://localhost/heron/records/abc123/", "abc123"},
		{"http://localhost/heron/records/abc123.jsonl.zst", "abc123"},
		{"abc123", "abc123"},
		{"", ""},
		{"/", ""},
	}
	for _, c := range cases {
		if got := LocalName(c.uri); got != c.want {
			t.Fatalf("LocalName(%q): got %v, want %v", c.uri, got, c.want)
		}
	}
}
