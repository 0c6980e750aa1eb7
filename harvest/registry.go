package harvest

import (
	"fmt"
	"sort"

	"github.com/miku/heron/config"
)

// Factory builds a harvester from an HTTP client and configuration.
type Factory func(client Doer, cfg *config.Config) (Harvester, error)

var registry = make(map[string]Factory)

// Register makes a harvester type available under a source name.
func Register(name string, f Factory) {
	registry[name] = f
}

// New builds a harvester for a registered source name.
func New(name string, client Doer, cfg *config.Config) (Harvester, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %s", name)
	}
	return f(client, cfg)
}

// Names returns the registered source names, sorted.
func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("api", func(client Doer, cfg *config.Config) (Harvester, error) {
		return &APIHarvester{
			Client: client,
			Opts: Options{
				Endpoint: cfg.Endpoint,
				Query:    cfg.Query,
				Rows:     cfg.Rows,
				Start:    cfg.Start,
				MaxPages: cfg.MaxPages,
			},
			Container: cfg.RecordBase,
		}, nil
	})
	Register("couchdb", func(client Doer, cfg *config.Config) (Harvester, error) {
		return NewCouchDBHarvester(client, Options{
			Endpoint: cfg.Endpoint,
			Rows:     cfg.Rows,
			Start:    cfg.Start,
			MaxPages: cfg.MaxPages,
		}, cfg.RecordBase), nil
	})
	Register("oai", func(client Doer, cfg *config.Config) (Harvester, error) {
		return &OAIHarvester{
			Client:         client,
			Endpoint:       cfg.Endpoint,
			MetadataPrefix: cfg.MetadataPrefix,
			Set:            cfg.Set,
			From:           cfg.From,
			Until:          cfg.Until,
			Container:      cfg.RecordBase,
			MaxPages:       cfg.MaxPages,
		}, nil
	})
}
