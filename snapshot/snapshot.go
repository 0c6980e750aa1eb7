// Package snapshot exports the outputs of an activity into compressed
// line delimited JSON files for downstream bulk processing.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/klauspost/compress/zstd"
	"github.com/miku/heron/atomicfile"
	"github.com/miku/heron/prov"
	"github.com/miku/heron/record"
	"github.com/miku/heron/repo"
	"github.com/segmentio/encoding/json"
)

// WriteActivity writes every record generated by an activity to a zstd
// compressed JSONL file under dir and returns its path. Idempotent: when
// the file already exists, the existing export is kept. The file is written
// atomically, so a failed export leaves nothing behind.
func WriteActivity(ctx context.Context, q prov.QueryClient, r repo.Repository, activityURI, dir string) (string, error) {
	name := record.LocalName(activityURI)
	if name == "" {
		return "", fmt.Errorf("unaddressable activity: %s", activityURI)
	}
	dst := path.Join(dir, fmt.Sprintf("heron-%s.jsonl.zst", name))
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	f, err := atomicfile.New(dst)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Abort()
		return "", err
	}
	var (
		je = json.NewEncoder(enc)
		it = q.FindByActivity(ctx, activityURI)
	)
	defer it.Close()
	for it.Next() {
		var raw json.RawMessage
		if err := r.Load(ctx, it.Locator().URI, &raw); err != nil {
			f.Abort()
			return "", err
		}
		if err := je.Encode(raw); err != nil {
			f.Abort()
			return "", err
		}
	}
	if err := it.Err(); err != nil {
		f.Abort()
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Abort()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
