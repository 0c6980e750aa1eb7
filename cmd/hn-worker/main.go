// hn-worker enqueues pipeline jobs and drains them with a worker pool.
// Agents are routed by queue name; every run gets its own activity.
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
	"github.com/miku/heron"
	"github.com/miku/heron/agent"
	"github.com/miku/heron/config"
	"github.com/miku/heron/harvest"
	"github.com/miku/heron/queue"
	"github.com/miku/heron/repo/boltrepo"
	"github.com/segmentio/encoding/json"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# hn-worker - queue and run pipeline jobs

Jobs carry the agent options as JSON and are routed by queue name. A
harvest job is followed up with a mapping job referencing the harvest
activity, usually enqueued by whatever scheduled the harvest.

## enqueue

$ hn-worker -e harvest -opts '{"source": "oai", "endpoint": "https://example.org/oai"}'
$ hn-worker -e mapping -opts '{"name": "oai_dc", "generator": "http://localhost/heron/activities/abc"}'

## work

$ hn-worker -n 4

## flags

`, "\n")

var (
	defaultDataDir = path.Join(xdg.DataHome, "heron")

	dir         = flag.String("d", defaultDataDir, "data directory")
	base        = flag.String("base", "http://localhost/heron", "base URI for minted record and activity addresses")
	workers     = flag.Int("n", 2, "number of workers")
	enqueueName = flag.String("e", "", "enqueue a job for the given queue and exit")
	optsJSON    = flag.String("opts", "{}", "agent options JSON for -e")
	runOnce     = flag.Bool("once", false, "drain the queued jobs and exit")
	timeout     = flag.Duration("T", 60*time.Second, "connection timeout")
	maxRetries  = flag.Int("r", 3, "max retries")
	showVersion = flag.Bool("version", false, "show version")
)

type harvestOpts struct {
	Source         string `json:"source"`
	Endpoint       string `json:"endpoint"`
	Query          string `json:"query,omitempty"`
	Rows           int    `json:"rows,omitempty"`
	Start          int    `json:"start,omitempty"`
	MaxPages       int    `json:"max_pages,omitempty"`
	MetadataPrefix string `json:"prefix,omitempty"`
	Set            string `json:"set,omitempty"`
	From           string `json:"from,omitempty"`
	Until          string `json:"until,omitempty"`
}

type mappingOpts struct {
	Name      string `json:"name"`
	Generator string `json:"generator"`
}

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
	if err := os.MkdirAll(*dir, 0755); err != nil {
		log.Fatal(err)
	}
	q, err := queue.Open(path.Join(*dir, "queue.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer q.Close()
	if *enqueueName != "" {
		id, err := q.Enqueue(*enqueueName, *optsJSON)
		if err != nil {
			log.Fatal(err)
		}
		log.WithFields(log.Fields{"job": id, "queue": *enqueueName}).Info("enqueued")
		return
	}
	store, err := boltrepo.Open(path.Join(*dir, "heron.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	store.ActivityBase = *base + "/activities"
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = *maxRetries
	client.RetryOnHTTP429 = true
	client.Timeout = *timeout
	w := &queue.Worker{
		Queue: q,
		Log:   store,
		Builders: map[string]queue.Builder{
			"harvest": func(opts string) (agent.Agent, error) {
				var ho harvestOpts
				if err := json.Unmarshal([]byte(opts), &ho); err != nil {
					return nil, err
				}
				cfg := &config.Config{
					Endpoint:       ho.Endpoint,
					Query:          ho.Query,
					Rows:           ho.Rows,
					Start:          ho.Start,
					MaxPages:       ho.MaxPages,
					MetadataPrefix: ho.MetadataPrefix,
					Set:            ho.Set,
					From:           ho.From,
					Until:          ho.Until,
					RecordBase:     *base + "/records",
				}
				h, err := harvest.New(ho.Source, client, cfg)
				if err != nil {
					return nil, err
				}
				return &agent.HarvestAgent{Harvester: h, Repo: store}, nil
			},
			"mapping": func(opts string) (agent.Agent, error) {
				var mo mappingOpts
				if err := json.Unmarshal([]byte(opts), &mo); err != nil {
					return nil, err
				}
				return &agent.MapperAgent{
					Name:       mo.Name,
					Generator:  mo.Generator,
					Query:      store,
					Repo:       store,
					MappedBase: *base + "/items",
				}, nil
			},
		},
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *runOnce {
		if err := w.RunOnce(ctx); err != nil {
			log.Fatal(err)
		}
		return
	}
	log.WithFields(log.Fields{"workers": *workers}).Info("worker started")
	if err := w.Run(ctx, *workers); err != nil {
		log.Fatal(err)
	}
}
