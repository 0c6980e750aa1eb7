package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/miku/heron/record"
	"github.com/segmentio/encoding/json"
)

// Options configure a paginated API harvest. Pagination state is advanced
// copy-by-copy by the cursor, never mutated in place, so every page request
// stays reproducible.
type Options struct {
	Endpoint string
	Query    string     // optional source query filter
	Rows     int        // page size hint, the source may return fewer or more
	Start    int        // start offset for the first page
	Params   url.Values // extra fixed parameters
	MaxPages int        // hard cap on page requests per pass, 0 means no cap
}

// Adapter captures the response shape of a specific provider. The default
// SolrAdapter covers the common Solr-like JSON shape; other providers
// supply their own implementations of just these methods.
type Adapter interface {
	// Docs extracts the raw document list from a response body.
	Docs(resp []byte) ([]json.RawMessage, error)
	// Count extracts the total record count from a response body.
	Count(resp []byte) (int64, error)
	// Identifier extracts the provider identifier from a document.
	Identifier(doc json.RawMessage) (string, error)
	// Content extracts the content to store from a document.
	Content(doc json.RawMessage) ([]byte, error)
	// Values renders page options into request parameters.
	Values(opts Options) url.Values
	// PointValues renders parameters selecting exactly one identifier.
	PointValues(id string) url.Values
}

// APIHarvester harvests sources exposing a single paginated query endpoint
// that returns a bounded page of documents plus a total count.
type APIHarvester struct {
	Client    Doer
	Opts      Options
	Adapter   Adapter // nil means SolrAdapter
	Container string  // canonical record container URI
	Type      string  // content type, default application/json
}

func (h *APIHarvester) adapter() Adapter {
	if h.Adapter != nil {
		return h.Adapter
	}
	return SolrAdapter{}
}

// ContentType returns the declared content type of records built by this
// harvester.
func (h *APIHarvester) ContentType() string {
	if h.Type != "" {
		return h.Type
	}
	return "application/json"
}

// fetch issues one request and returns the raw response body. Any transport
// or HTTP level failure becomes a SourceError.
func (h *APIHarvester) fetch(ctx context.Context, vs url.Values) ([]byte, error) {
	link := h.Opts.Endpoint
	if enc := vs.Encode(); enc != "" {
		link = link + "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return nil, &SourceError{URL: link, Err: err}
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, &SourceError{URL: link, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &SourceError{URL: link, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{URL: link, Err: err}
	}
	return b, nil
}

// Count returns the total number of records the source currently reports.
func (h *APIHarvester) Count(ctx context.Context) (int64, error) {
	b, err := h.fetch(ctx, h.adapter().Values(h.Opts))
	if err != nil {
		return 0, err
	}
	n, err := h.adapter().Count(b)
	if err != nil {
		return 0, &SourceError{URL: h.Opts.Endpoint, Err: err}
	}
	return n, nil
}

// Records returns a lazy iterator over the records targeted by this
// harvester, starting from the configured options.
func (h *APIHarvester) Records(ctx context.Context) *Iter {
	return NewIter(ctx, h.cursor(), h.build)
}

// RecordIDs returns a lazy iterator over provider identifiers, with the
// same pagination mechanics as Records.
func (h *APIHarvester) RecordIDs(ctx context.Context) *IDIter {
	return NewIDIter(ctx, h.cursor())
}

// GetRecord fetches a single record by constructing a query for exactly the
// given identifier and taking the first match.
func (h *APIHarvester) GetRecord(ctx context.Context, id string) (record.Canonical, error) {
	b, err := h.fetch(ctx, h.adapter().PointValues(id))
	if err != nil {
		return record.Canonical{}, err
	}
	docs, err := h.adapter().Docs(b)
	if err != nil {
		return record.Canonical{}, &SourceError{URL: h.Opts.Endpoint, Err: err}
	}
	if len(docs) == 0 {
		return record.Canonical{}, ErrNotFound
	}
	raw, err := h.rawDoc(docs[0])
	if err != nil {
		return record.Canonical{}, &SourceError{URL: h.Opts.Endpoint, Err: err}
	}
	return h.build(raw), nil
}

func (h *APIHarvester) cursor() *pageCursor {
	return &pageCursor{h: h, opts: h.Opts}
}

func (h *APIHarvester) build(doc record.RawDoc) record.Canonical {
	return record.Build(doc, h.Container, h.ContentType())
}

func (h *APIHarvester) rawDoc(doc json.RawMessage) (record.RawDoc, error) {
	id, err := h.adapter().Identifier(doc)
	if err != nil {
		return record.RawDoc{}, err
	}
	content, err := h.adapter().Content(doc)
	if err != nil {
		return record.RawDoc{}, err
	}
	return record.RawDoc{ID: id, Data: content}, nil
}

// pageCursor drives pagination one page at a time. The sole termination
// condition is an empty document list; MaxPages guards against sources that
// never return one.
type pageCursor struct {
	h     *APIHarvester
	opts  Options
	pages int
}

func (c *pageCursor) Next(ctx context.Context) ([]record.RawDoc, error) {
	if c.opts.MaxPages > 0 && c.pages >= c.opts.MaxPages {
		return nil, ErrTooManyPages
	}
	b, err := c.h.fetch(ctx, c.h.adapter().Values(c.opts))
	if err != nil {
		return nil, err
	}
	docs, err := c.h.adapter().Docs(b)
	if err != nil {
		return nil, &SourceError{URL: c.opts.Endpoint, Err: err}
	}
	if len(docs) == 0 {
		return nil, io.EOF
	}
	out := make([]record.RawDoc, 0, len(docs))
	for _, d := range docs {
		raw, err := c.h.rawDoc(d)
		if err != nil {
			return nil, &SourceError{URL: c.opts.Endpoint, Err: err}
		}
		out = append(out, raw)
	}
	// Advance the offset by the number of documents actually returned, not
	// by the page size hint; correct even when the remote page size varies.
	next := c.opts
	next.Start += len(docs)
	c.opts = next
	c.pages++
	return out, nil
}

// SolrAdapter reads the generic Solr-like JSON response shape:
// {"response": {"numFound": N, "docs": [...]}} with an "id" field on every
// document. Content is the document itself.
type SolrAdapter struct{}

type solrBody struct {
	Response struct {
		NumFound int64             `json:"numFound"`
		Docs     []json.RawMessage `json:"docs"`
	} `json:"response"`
}

func (SolrAdapter) Docs(resp []byte) ([]json.RawMessage, error) {
	var body solrBody
	if err := json.Unmarshal(resp, &body); err != nil {
		return nil, err
	}
	return body.Response.Docs, nil
}

func (SolrAdapter) Count(resp []byte) (int64, error) {
	var body solrBody
	if err := json.Unmarshal(resp, &body); err != nil {
		return 0, err
	}
	return body.Response.NumFound, nil
}

func (SolrAdapter) Identifier(doc json.RawMessage) (string, error) {
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(doc, &d); err != nil {
		return "", err
	}
	if d.ID == "" {
		return "", fmt.Errorf("document without id")
	}
	return d.ID, nil
}

func (SolrAdapter) Content(doc json.RawMessage) ([]byte, error) {
	return doc, nil
}

func (SolrAdapter) Values(opts Options) url.Values {
	vs := url.Values{}
	for k, v := range opts.Params {
		vs[k] = v
	}
	if opts.Query != "" {
		vs.Set("q", opts.Query)
	}
	if opts.Rows > 0 {
		vs.Set("rows", strconv.Itoa(opts.Rows))
	}
	vs.Set("start", strconv.Itoa(opts.Start))
	return vs
}

func (SolrAdapter) PointValues(id string) url.Values {
	vs := url.Values{}
	vs.Set("q", fmt.Sprintf("id:%q", id))
	vs.Set("rows", "1")
	return vs
}
