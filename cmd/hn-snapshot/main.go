// hn-snapshot exports the outputs of an activity to a zstd compressed
// JSONL file for downstream bulk processing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/adrg/xdg"
	"github.com/miku/heron"
	"github.com/miku/heron/repo/boltrepo"
	"github.com/miku/heron/snapshot"
	log "github.com/sirupsen/logrus"
)

var (
	defaultDataDir = path.Join(xdg.DataHome, "heron")

	activityURI = flag.String("a", "", "activity URI whose outputs to export")
	dir         = flag.String("d", defaultDataDir, "data directory")
	outDir      = flag.String("o", "", "output directory, default: snapshots under the data directory")
	showVersion = flag.Bool("version", false, "show version")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(heron.Version)
		os.Exit(0)
	}
	if *activityURI == "" {
		log.Fatal("missing -a activity URI")
	}
	dst := *outDir
	if dst == "" {
		dst = path.Join(*dir, "snapshots")
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		log.Fatal(err)
	}
	store, err := boltrepo.Open(path.Join(*dir, "heron.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fn, err := snapshot.WriteActivity(ctx, store, store, *activityURI, dst)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(fn)
}
