package config

import "time"

// Config for the pipeline tools. Values are assembled from flags and passed
// explicitly into constructors; nothing reads ambient process state.
type Config struct {
	// DataDir is the generic data dir for all heron tools.
	DataDir string
	// RepoPath is the bolt database file holding records, provenance and
	// activities. Defaults to a file under DataDir.
	RepoPath string
	// Source is the registered harvester type to use: api, couchdb, oai.
	Source string
	// Endpoint is the remote source address.
	Endpoint string
	// Query is an optional source query filter (paginated API sources).
	Query string
	Rows  int
	Start int
	// MaxPages caps page requests per harvest pass, guarding against
	// sources that never report exhaustion. 0 means no cap.
	MaxPages int
	// OAI-PMH specific options.
	MetadataPrefix string
	Set            string
	From           string
	Until          string
	// Container URIs for minted record addresses.
	RecordBase   string
	MappedBase   string
	ActivityBase string
	Timeout      time.Duration
	MaxRetries   int
}
