// hn-map runs a mapping pass: it pulls the records generated by a harvest
// activity, applies a named crosswalk and persists the mapped records as
// outputs of a new activity.
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

	"github.com/adrg/xdg"
	"github.com/miku/heron"
	"github.com/miku/heron/agent"
	"github.com/miku/heron/crosswalk"
	"github.com/miku/heron/repo/boltrepo"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# hn-map - crosswalk harvested records into the aggregation schema

Reads the outputs of a harvest activity from the local repository, maps
them with a named crosswalk and persists the results under a new activity,
whose URI is printed on success.

## list crosswalks

$ hn-map -l
flatjson
oai_dc

## map

$ hn-map -name oai_dc -generator http://localhost/heron/activities/abc...

## flags

`, "\n")

var (
	defaultDataDir = path.Join(xdg.DataHome, "heron")

	name        = flag.String("name", "oai_dc", "crosswalk to apply")
	generator   = flag.String("generator", "", "activity URI whose outputs to map")
	listNames   = flag.Bool("l", false, "list available crosswalks")
	dir         = flag.String("d", defaultDataDir, "data directory")
	base        = flag.String("base", "http://localhost/heron", "base URI for minted record and activity addresses")
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
	if *listNames {
		for _, n := range crosswalk.Names() {
			fmt.Println(n)
		}
		os.Exit(0)
	}
	if *generator == "" {
		log.Fatal("missing -generator activity URI")
	}
	store, err := boltrepo.Open(path.Join(*dir, "heron.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	store.ActivityBase = *base + "/activities"
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	opts, _ := json.Marshal(map[string]string{
		"name":      *name,
		"generator": *generator,
	})
	act, err := store.Start("agent.MapperAgent", string(opts))
	if err != nil {
		log.Fatal(err)
	}
	a := &agent.MapperAgent{
		Name:       *name,
		Generator:  *generator,
		Query:      store,
		Repo:       store,
		MappedBase: *base + "/items",
	}
	if err := a.Run(ctx, act.URI); err != nil {
		log.Fatal(err)
	}
	if err := store.Complete(act.URI); err != nil {
		log.Fatal(err)
	}
	fmt.Println(act.URI)
}
