// Package oaidc contains types for OAI-PMH responses carrying Dublin Core
// metadata.
package oaidc

import "encoding/xml"

// Envelope is the OAI-PMH response wrapper for the verbs we issue. Record
// payloads are kept as raw inner XML so the harvester can store them
// verbatim.
type Envelope struct {
	XMLName      xml.Name `xml:"OAI-PMH"`
	ResponseDate string   `xml:"responseDate"`
	Error        struct {
		Code    string `xml:"code,attr"` // badResumptionToken, idDoesNotExist, ...
		Message string `xml:",chardata"`
	} `xml:"error"`
	ListRecords struct {
		Records         []RawRecord     `xml:"record"`
		ResumptionToken ResumptionToken `xml:"resumptionToken"`
	} `xml:"ListRecords"`
	ListIdentifiers struct {
		Headers         []Header        `xml:"header"`
		ResumptionToken ResumptionToken `xml:"resumptionToken"`
	} `xml:"ListIdentifiers"`
	GetRecord struct {
		Record *RawRecord `xml:"record"`
	} `xml:"GetRecord"`
}

type ResumptionToken struct {
	Value            string `xml:",chardata"`
	CompleteListSize int64  `xml:"completeListSize,attr"`
	Cursor           int64  `xml:"cursor,attr"`
}

type Header struct {
	Status     string   `xml:"status,attr"` // deleted
	Identifier string   `xml:"identifier"`  // oai:example.org:oai/123
	Datestamp  string   `xml:"datestamp"`   // 2011-04-12
	SetSpec    []string `xml:"setSpec"`
}

// RawRecord keeps the record element body unparsed, for verbatim storage.
type RawRecord struct {
	Header Header `xml:"header"`
	Inner  []byte `xml:",innerxml"`
}

// Record is the parsed form of a stored OAI record, used by crosswalks.
type Record struct {
	XMLName  xml.Name `xml:"record"`
	Header   Header   `xml:"header"`
	Metadata struct {
		Dc struct {
			Title       []string `xml:"title"`
			Creator     []string `xml:"creator"`     // Dawson, Nathan J., ...
			Contributor []string `xml:"contributor"`
			Subject     []string `xml:"subject"`
			Description []string `xml:"description"`
			Publisher   []string `xml:"publisher"`
			Date        []string `xml:"date"` // 2010-07-22, 2010, ...
			Type        []string `xml:"type"`
			Format      []string `xml:"format"`
			Identifier  []string `xml:"identifier"`
			Language    []string `xml:"language"`
			Relation    []string `xml:"relation"`
			Rights      []string `xml:"rights"`
			Coverage    []string `xml:"coverage"`
		} `xml:"dc"`
	} `xml:"metadata"`
}
