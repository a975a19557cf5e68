package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantlab/quantlab/internal/storage"
)

// openZone resolves a zone root flag into a storage.Zone: an
// "s3://bucket/prefix" URI opens an S3-backed zone via the default AWS
// credential chain, anything else is a local filesystem directory.
func openZone(ctx context.Context, root string) (storage.Zone, error) {
	if strings.HasPrefix(root, "s3://") {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(root, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("quantlab: zone %q: s3 URI must name a bucket", root)
		}
		return storage.NewS3Zone(ctx, bucket, strings.TrimSuffix(prefix, "/"))
	}
	return storage.NewLocalZone(root)
}
