package harvest

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/segmentio/encoding/json"
)

// CouchDBAdapter reads the _all_docs response shape of a CouchDB style
// document store: {"total_rows": N, "rows": [{"id": ..., "doc": {...}}]}.
// Requests always carry include_docs=true so the stored content is the full
// document, not just the row stub.
type CouchDBAdapter struct{}

type couchBody struct {
	TotalRows int64             `json:"total_rows"`
	Rows      []json.RawMessage `json:"rows"`
}

type couchRow struct {
	ID  string          `json:"id"`
	Doc json.RawMessage `json:"doc"`
}

func (CouchDBAdapter) Docs(resp []byte) ([]json.RawMessage, error) {
	var body couchBody
	if err := json.Unmarshal(resp, &body); err != nil {
		return nil, err
	}
	return body.Rows, nil
}

func (CouchDBAdapter) Count(resp []byte) (int64, error) {
	var body couchBody
	if err := json.Unmarshal(resp, &body); err != nil {
		return 0, err
	}
	return body.TotalRows, nil
}

func (CouchDBAdapter) Identifier(doc json.RawMessage) (string, error) {
	var row couchRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return "", err
	}
	if row.ID == "" {
		return "", fmt.Errorf("row without id")
	}
	return row.ID, nil
}

func (CouchDBAdapter) Content(doc json.RawMessage) ([]byte, error) {
	var row couchRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return nil, err
	}
	if len(row.Doc) == 0 {
		return nil, fmt.Errorf("row without doc, is include_docs set?")
	}
	return row.Doc, nil
}

func (CouchDBAdapter) Values(opts Options) url.Values {
	vs := url.Values{}
	for k, v := range opts.Params {
		vs[k] = v
	}
	vs.Set("include_docs", "true")
	if opts.Rows > 0 {
		vs.Set("limit", strconv.Itoa(opts.Rows))
	}
	vs.Set("skip", strconv.Itoa(opts.Start))
	return vs
}

func (CouchDBAdapter) PointValues(id string) url.Values {
	vs := url.Values{}
	vs.Set("include_docs", "true")
	key, _ := json.Marshal(id)
	vs.Set("key", string(key))
	return vs
}

// NewCouchDBHarvester returns a harvester over a document store _all_docs
// endpoint, reusing the paginated API core with the CouchDB response shape.
func NewCouchDBHarvester(client Doer, opts Options, container string) *APIHarvester {
	return &APIHarvester{
		Client:    client,
		Opts:      opts,
		Adapter:   CouchDBAdapter{},
		Container: container,
	}
}
