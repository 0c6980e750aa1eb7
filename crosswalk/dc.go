package crosswalk

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/miku/heron/record"
	"github.com/miku/heron/schema/aggregation"
	"github.com/miku/heron/schema/oaidc"
	"github.com/segmentio/encoding/json"
)

func init() {
	Register("oai_dc", OAIDC)
	Register("flatjson", FlatJSON)
}

// OAIDC maps stored OAI-PMH Dublin Core record XML into the aggregation
// schema. Records without content, without a parseable body or without a
// title are dropped via Skip.
func OAIDC(recs []record.Canonical) ([]record.Mapped, error) {
	var out []record.Mapped
	for _, c := range recs {
		m, err := oaidcOne(c)
		if err != nil {
			if IsSkip(err) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func oaidcOne(c record.Canonical) (record.Mapped, error) {
	if len(c.Content) == 0 {
		return record.Mapped{}, ErrSkipNoContent
	}
	var doc oaidc.Record
	dec := xml.NewDecoder(bytes.NewReader(c.Content))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return record.Mapped{}, ErrSkipUnparsed
	}
	dc := doc.Metadata.Dc
	titles := cleanAll(dc.Title)
	if len(titles) == 0 {
		return record.Mapped{}, ErrSkipNoTitle
	}
	return record.Mapped{
		Sources: []record.Locator{c.Locator()},
		Aggregation: aggregation.Aggregation{
			OriginalRecord: c.URI,
			SourceResource: aggregation.SourceResource{
				Title:       titles,
				Creator:     cleanAll(dc.Creator),
				Contributor: cleanAll(dc.Contributor),
				Subject:     cleanAll(dc.Subject),
				Description: cleanAll(dc.Description),
				Publisher:   cleanAll(dc.Publisher),
				Date:        normalizeDates(dc.Date),
				Type:        cleanAll(dc.Type),
				Format:      cleanAll(dc.Format),
				Language:    cleanAll(dc.Language),
				Identifier:  cleanAll(dc.Identifier),
				Relation:    cleanAll(dc.Relation),
				Rights:      cleanAll(dc.Rights),
				Spatial:     cleanAll(dc.Coverage),
			},
		},
	}, nil
}

// FlatJSON maps flat JSON documents, as stored by the generic paginated API
// harvester, into the aggregation schema. Field values may be strings or
// lists of strings.
func FlatJSON(recs []record.Canonical) ([]record.Mapped, error) {
	var out []record.Mapped
	for _, c := range recs {
		m, err := flatjsonOne(c)
		if err != nil {
			if IsSkip(err) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func flatjsonOne(c record.Canonical) (record.Mapped, error) {
	if len(c.Content) == 0 {
		return record.Mapped{}, ErrSkipNoContent
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(c.Content, &doc); err != nil {
		return record.Mapped{}, ErrSkipUnparsed
	}
	titles := field(doc, "title", "title_display")
	if len(titles) == 0 {
		return record.Mapped{}, ErrSkipNoTitle
	}
	return record.Mapped{
		Sources: []record.Locator{c.Locator()},
		Aggregation: aggregation.Aggregation{
			OriginalRecord: c.URI,
			SourceResource: aggregation.SourceResource{
				Title:       titles,
				Creator:     field(doc, "creator", "author"),
				Subject:     field(doc, "subject"),
				Description: field(doc, "description"),
				Publisher:   field(doc, "publisher"),
				Date:        normalizeDates(field(doc, "date", "created")),
				Type:        field(doc, "type"),
				Format:      field(doc, "format"),
				Language:    field(doc, "language"),
				Identifier:  field(doc, "identifier"),
				Rights:      field(doc, "rights"),
			},
		},
	}, nil
}

// field collects string values from the first of the given keys present.
func field(doc map[string]interface{}, keys ...string) []string {
	for _, key := range keys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		if vs := toList(v); len(vs) > 0 {
			return vs
		}
	}
	return nil
}

func toList(v interface{}) (result []string) {
	switch w := v.(type) {
	case string:
		if s := strings.TrimSpace(w); s != "" {
			result = append(result, s)
		}
	case []interface{}:
		for _, item := range w {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				result = append(result, strings.TrimSpace(s))
			}
		}
	}
	return result
}

func cleanAll(vs []string) (result []string) {
	for _, v := range vs {
		if s := strings.TrimSpace(v); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// normalizeDates brings date strings into YYYY-MM-DD where a date can be
// parsed at all; anything else is passed through as provided.
func normalizeDates(vs []string) (result []string) {
	for _, v := range vs {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if t, err := dateparse.ParseAny(v); err == nil {
			result = append(result, t.Format("2006-01-02"))
		} else {
			result = append(result, v)
		}
	}
	return result
}
