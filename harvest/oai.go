package harvest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/miku/heron/record"
	"github.com/miku/heron/schema/oaidc"
)

// OAIHarvester harvests an OAI-PMH endpoint via ListRecords and resumption
// tokens. Record content is the verbatim record element XML.
type OAIHarvester struct {
	Client         Doer
	Endpoint       string
	MetadataPrefix string // default oai_dc
	Set            string
	From           string // YYYY-MM-DD
	Until          string // YYYY-MM-DD
	Container      string
	MaxPages       int
}

func (h *OAIHarvester) prefix() string {
	if h.MetadataPrefix != "" {
		return h.MetadataPrefix
	}
	return "oai_dc"
}

// ContentType returns the content type of records built by this harvester.
func (h *OAIHarvester) ContentType() string { return "application/xml" }

// fetch issues one OAI-PMH request and decodes the envelope. Protocol
// errors other than noRecordsMatch surface as SourceError wrapping a
// ProtocolError.
func (h *OAIHarvester) fetch(ctx context.Context, vs url.Values) (*oaidc.Envelope, error) {
	link := h.Endpoint + "?" + vs.Encode()
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
	var env oaidc.Envelope
	dec := xml.NewDecoder(resp.Body)
	dec.Strict = false
	if err := dec.Decode(&env); err != nil {
		return nil, &SourceError{URL: link, Err: err}
	}
	return &env, nil
}

// Records returns a lazy iterator over the records of the endpoint,
// starting a fresh ListRecords pass.
func (h *OAIHarvester) Records(ctx context.Context) *Iter {
	return NewIter(ctx, &oaiCursor{h: h}, h.build)
}

// RecordIDs returns a lazy iterator over OAI identifiers, same pagination
// mechanics as Records.
func (h *OAIHarvester) RecordIDs(ctx context.Context) *IDIter {
	return NewIDIter(ctx, &oaiCursor{h: h})
}

// Count reports the complete list size if the endpoint announces one on its
// first resumption token, and otherwise counts identifiers page by page.
// Hitting the page cap returns the identifiers counted so far together with
// ErrTooManyPages.
func (h *OAIHarvester) Count(ctx context.Context) (int64, error) {
	vs := h.listValues("ListIdentifiers")
	var total int64
	var pages int
	for {
		env, err := h.fetch(ctx, vs)
		if err != nil {
			return 0, err
		}
		if code := env.Error.Code; code != "" {
			if code == "noRecordsMatch" {
				return 0, nil
			}
			return 0, &SourceError{URL: h.Endpoint, Err: &ProtocolError{Code: code, Message: env.Error.Message}}
		}
		token := env.ListIdentifiers.ResumptionToken
		if token.CompleteListSize > 0 {
			return token.CompleteListSize, nil
		}
		total += int64(len(env.ListIdentifiers.Headers))
		pages++
		if strings.TrimSpace(token.Value) == "" {
			return total, nil
		}
		if h.MaxPages > 0 && pages >= h.MaxPages {
			return total, ErrTooManyPages
		}
		vs = url.Values{}
		vs.Set("verb", "ListIdentifiers")
		vs.Set("resumptionToken", strings.TrimSpace(token.Value))
	}
}

// GetRecord fetches a single record via the GetRecord verb.
func (h *OAIHarvester) GetRecord(ctx context.Context, id string) (record.Canonical, error) {
	vs := url.Values{}
	vs.Set("verb", "GetRecord")
	vs.Set("identifier", id)
	vs.Set("metadataPrefix", h.prefix())
	env, err := h.fetch(ctx, vs)
	if err != nil {
		return record.Canonical{}, err
	}
	if code := env.Error.Code; code != "" {
		if code == "idDoesNotExist" {
			return record.Canonical{}, ErrNotFound
		}
		return record.Canonical{}, &SourceError{URL: h.Endpoint, Err: &ProtocolError{Code: code, Message: env.Error.Message}}
	}
	rec := env.GetRecord.Record
	if rec == nil {
		return record.Canonical{}, ErrNotFound
	}
	return h.build(rawFromOAI(*rec)), nil
}

func (h *OAIHarvester) build(doc record.RawDoc) record.Canonical {
	return record.Build(doc, h.Container, h.ContentType())
}

func (h *OAIHarvester) listValues(verb string) url.Values {
	vs := url.Values{}
	vs.Set("verb", verb)
	vs.Set("metadataPrefix", h.prefix())
	if h.Set != "" {
		vs.Set("set", h.Set)
	}
	if h.From != "" {
		vs.Set("from", h.From)
	}
	if h.Until != "" {
		vs.Set("until", h.Until)
	}
	return vs
}

func rawFromOAI(rec oaidc.RawRecord) record.RawDoc {
	var b strings.Builder
	b.WriteString("<record>")
	b.Write(rec.Inner)
	b.WriteString("</record>")
	return record.RawDoc{ID: rec.Header.Identifier, Data: []byte(b.String())}
}

// oaiCursor pages through a ListRecords pass. Termination: an empty record
// list, a noRecordsMatch error, or an absent resumption token after at
// least one page.
type oaiCursor struct {
	h       *OAIHarvester
	token   string
	started bool
	pages   int
}

func (c *oaiCursor) Next(ctx context.Context) ([]record.RawDoc, error) {
	if c.started && c.token == "" {
		return nil, io.EOF
	}
	if c.h.MaxPages > 0 && c.pages >= c.h.MaxPages {
		return nil, ErrTooManyPages
	}
	var vs url.Values
	if !c.started {
		vs = c.h.listValues("ListRecords")
	} else {
		vs = url.Values{}
		vs.Set("verb", "ListRecords")
		vs.Set("resumptionToken", c.token)
	}
	env, err := c.h.fetch(ctx, vs)
	if err != nil {
		return nil, err
	}
	if code := env.Error.Code; code != "" {
		if code == "noRecordsMatch" {
			return nil, io.EOF
		}
		return nil, &SourceError{URL: c.h.Endpoint, Err: &ProtocolError{Code: code, Message: env.Error.Message}}
	}
	recs := env.ListRecords.Records
	if len(recs) == 0 {
		return nil, io.EOF
	}
	docs := make([]record.RawDoc, 0, len(recs))
	for _, rec := range recs {
		if rec.Header.Status == "deleted" {
			continue
		}
		docs = append(docs, rawFromOAI(rec))
	}
	c.started = true
	c.token = strings.TrimSpace(env.ListRecords.ResumptionToken.Value)
	c.pages++
	return docs, nil
}
