// Package aggregation contains the target metadata model crosswalks map
// into: a lightweight aggregation tying a described source resource to the
// providing institution and the stored original record.
package aggregation

type Aggregation struct {
	SourceResource SourceResource `json:"source_resource"`
	Provider       string         `json:"provider,omitempty"`
	DataProvider   string         `json:"data_provider,omitempty"`
	OriginalRecord string         `json:"original_record,omitempty"` // URI of the stored canonical record
	IsShownAt      string         `json:"is_shown_at,omitempty"`
	Preview        string         `json:"preview,omitempty"`
}

type SourceResource struct {
	Title       []string `json:"title,omitempty"`
	Creator     []string `json:"creator,omitempty"`
	Contributor []string `json:"contributor,omitempty"`
	Subject     []string `json:"subject,omitempty"`
	Description []string `json:"description,omitempty"`
	Publisher   []string `json:"publisher,omitempty"`
	Date        []string `json:"date,omitempty"` // normalized to YYYY-MM-DD where possible
	Type        []string `json:"type,omitempty"`
	Format      []string `json:"format,omitempty"`
	Language    []string `json:"language,omitempty"`
	Identifier  []string `json:"identifier,omitempty"`
	Relation    []string `json:"relation,omitempty"`
	Rights      []string `json:"rights,omitempty"`
	Spatial     []string `json:"spatial,omitempty"`
}
