// hn-harvest runs one harvest pass against a remote source and persists
// the records as outputs of a new activity.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/jinzhu/now"
	"github.com/miku/heron"
	"github.com/miku/heron/agent"
	"github.com/miku/heron/config"
	"github.com/miku/heron/harvest"
	"github.com/miku/heron/repo/boltrepo"
	"github.com/segmentio/encoding/json"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# hn-harvest - pull records from a remote source

Harvests a paginated JSON API, a CouchDB style document store or an OAI-PMH
endpoint into the local repository. Every pass runs under a fresh activity;
the activity URI is printed on success and is what you hand to hn-map.

## list source types

$ hn-harvest -l
api
couchdb
oai

## harvest

$ hn-harvest -s api -endpoint https://example.org/select -q '*:*'
$ hn-harvest -s oai -endpoint https://example.org/oai -set physics

## flags

`, "\n")

var (
	defaultDataDir = path.Join(xdg.DataHome, "heron")
	yesterday      = time.Now().Add(-86400 * time.Second)

	source      = flag.String("s", "api", "source type to harvest")
	listSources = flag.Bool("l", false, "list available source types")
	endpoint    = flag.String("endpoint", "", "remote source address")
	query       = flag.String("q", "", "source query filter (api sources)")
	rows        = flag.Int("rows", 100, "page size hint")
	start       = flag.Int("start", 0, "start offset")
	maxPages    = flag.Int("max-pages", 10000, "hard cap on page requests per pass, 0 for no cap")
	prefix      = flag.String("prefix", "oai_dc", "metadata prefix (oai sources)")
	oaiSet      = flag.String("set", "", "set filter (oai sources)")
	fromDate    = flag.String("from", "", "lower date bound YYYY-MM-DD (oai sources)")
	untilDate   = flag.String("until", "", "upper date bound YYYY-MM-DD (oai sources)")
	dateStr     = flag.String("t", "", "harvest a single day, e.g. "+yesterday.Format("2006-01-02"))
	dir         = flag.String("d", defaultDataDir, "data directory")
	base        = flag.String("base", "http://localhost/heron", "base URI for minted record and activity addresses")
	timeout     = flag.Duration("T", 60*time.Second, "connection timeout")
	maxRetries  = flag.Int("r", 3, "max retries")
	countOnly   = flag.Bool("c", false, "only report the source record count")
	idsOnly     = flag.Bool("i", false, "only stream provider identifiers to stdout")
	showVersion = flag.Bool("version", false, "show version")
)

func main() {
	flag.Usage = func() {
		io.WriteString(os.Stderr, docs)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(heron.Version)
		os.Exit(0)
	}
	if *listSources {
		for _, name := range harvest.Names() {
			fmt.Println(name)
		}
		os.Exit(0)
	}
	if *endpoint == "" {
		log.Fatal("missing -endpoint")
	}
	cfg := &config.Config{
		DataDir:        *dir,
		RepoPath:       path.Join(*dir, "heron.db"),
		Source:         *source,
		Endpoint:       *endpoint,
		Query:          *query,
		Rows:           *rows,
		Start:          *start,
		MaxPages:       *maxPages,
		MetadataPrefix: *prefix,
		Set:            *oaiSet,
		From:           *fromDate,
		Until:          *untilDate,
		RecordBase:     *base + "/records",
		ActivityBase:   *base + "/activities",
		Timeout:        *timeout,
		MaxRetries:     *maxRetries,
	}
	if *dateStr != "" && cfg.From == "" && cfg.Until == "" {
		date, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.Fatalf("invalid date: %v", err)
		}
		cfg.From = now.With(date).BeginningOfDay().Format("2006-01-02")
		cfg.Until = now.With(date).EndOfDay().Format("2006-01-02")
	}
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = cfg.MaxRetries
	client.RetryOnHTTP429 = true
	client.Timeout = cfg.Timeout
	h, err := harvest.New(cfg.Source, client, cfg)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	switch {
	case *countOnly:
		n, err := h.Count(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(n)
	case *idsOnly:
		it := h.RecordIDs(ctx)
		for it.Next() {
			fmt.Println(it.ID())
		}
		if err := it.Err(); err != nil {
			log.Fatal(err)
		}
	default:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatal(err)
		}
		store, err := boltrepo.Open(cfg.RepoPath)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		store.ActivityBase = cfg.ActivityBase
		opts, _ := json.Marshal(map[string]interface{}{
			"source":   cfg.Source,
			"endpoint": cfg.Endpoint,
			"query":    cfg.Query,
			"set":      cfg.Set,
			"from":     cfg.From,
			"until":    cfg.Until,
		})
		act, err := store.Start("agent.HarvestAgent", string(opts))
		if err != nil {
			log.Fatal(err)
		}
		a := &agent.HarvestAgent{Harvester: h, Repo: store}
		if err := a.Run(ctx, act.URI); err != nil {
			log.Fatal(err)
		}
		if err := store.Complete(act.URI); err != nil {
			log.Fatal(err)
		}
		fmt.Println(act.URI)
	}
}
