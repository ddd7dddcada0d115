package ctperfusion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

const gsPrefix = "gs://"

// IsGoogleStorage reports whether path refers to a Google Storage object or
// prefix.
func IsGoogleStorage(path string) bool {
	return strings.HasPrefix(path, gsPrefix)
}

// SplitGoogleStoragePath splits gs://bucket/some/object into its bucket and
// object name.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, gsPrefix), "/", 2)
	if len(pathParts) != 2 {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// Open opens a local file, or a Google Storage object if the path begins with
// gs://. A nil client is only permitted for local paths.
func Open(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if !IsGoogleStorage(path) {
		f, err := os.Open(ExpandHome(path))
		if err != nil {
			return nil, pfx.Err(err)
		}
		return f, nil
	}

	if client == nil {
		return nil, pfx.Err(fmt.Errorf("%s: no google storage client was provided", path))
	}

	bucketName, objectName, err := SplitGoogleStoragePath(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rdr, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return rdr, nil
}

// ReadAll reads an entire local file or Google Storage object into memory.
func ReadAll(ctx context.Context, path string, client *storage.Client) ([]byte, error) {
	rdr, err := Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	b, err := io.ReadAll(rdr)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return b, nil
}

// List returns the sorted object paths beneath a Google Storage prefix, or the
// sorted regular files beneath a local directory (recursively).
func List(ctx context.Context, path string, client *storage.Client) ([]string, error) {
	if IsGoogleStorage(path) {
		return listGoogleStorage(ctx, path, client)
	}

	var out []string
	err := filepath.WalkDir(ExpandHome(path), func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, pfx.Err(err)
	}
	sort.Strings(out)

	return out, nil
}

func listGoogleStorage(ctx context.Context, path string, client *storage.Client) ([]string, error) {
	if client == nil {
		return nil, pfx.Err(fmt.Errorf("%s: no google storage client was provided", path))
	}

	bucketName, prefix, err := SplitGoogleStoragePath(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []string
	it := client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		// Directory placeholders
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		out = append(out, gsPrefix+bucketName+"/"+attrs.Name)
	}
	sort.Strings(out)

	return out, nil
}
