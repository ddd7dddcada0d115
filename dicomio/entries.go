package dicomio

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
)

// Entry is one file of a study, held in memory.
type Entry struct {
	Name string
	Data []byte
}

// ReadEntries loads every file of a study into memory. The path may be a
// local directory, a gs:// prefix ending in a slash, or a single file or
// object. Zip archives and (optionally compressed) tarballs are expanded.
func ReadEntries(ctx context.Context, studyPath string, client *storage.Client) ([]Entry, error) {
	var paths []string

	switch {
	case ctperfusion.IsGoogleStorage(studyPath) && strings.HasSuffix(studyPath, "/"):
		listed, err := ctperfusion.List(ctx, studyPath, client)
		if err != nil {
			return nil, err
		}
		paths = listed

	case ctperfusion.IsGoogleStorage(studyPath):
		paths = []string{studyPath}

	default:
		info, err := os.Stat(ctperfusion.ExpandHome(studyPath))
		if err != nil {
			return nil, pfx.Err(err)
		}
		if info.IsDir() {
			listed, err := ctperfusion.List(ctx, studyPath, client)
			if err != nil {
				return nil, err
			}
			paths = listed
		} else {
			paths = []string{studyPath}
		}
	}

	var out []Entry
	for _, p := range paths {
		rdr, err := ctperfusion.Open(ctx, p, client)
		if err != nil {
			return nil, err
		}

		entries, err := entriesFromStream(p, rdr)
		rdr.Close()
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, entries...)
	}

	return out, nil
}

// entriesFromStream expands archives and returns plain files as a single
// entry.
func entriesFromStream(name string, r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	stream, dt, err := ctperfusion.MaybeDecompress(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if dt == ctperfusion.DataTypeZip {
		return entriesFromZip(name, stream)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if isTar(data) {
		return entriesFromTar(name, data)
	}

	return []Entry{{Name: name, Data: data}}, nil
}

func entriesFromZip(name string, r io.Reader) ([]Entry, error) {
	var out []Entry

	zr := zipstream.NewReader(r)
	for {
		header, err := zr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		if strings.HasSuffix(header.Name, "/") {
			continue
		}

		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", name, header.Name, err)
		}
		out = append(out, Entry{Name: path.Join(name, header.Name), Data: data})
	}

	return out, nil
}

func entriesFromTar(name string, data []byte) ([]Entry, error) {
	var out []Entry

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", name, header.Name, err)
		}
		out = append(out, Entry{Name: path.Join(name, header.Name), Data: body})
	}

	return out, nil
}

// isTar checks for the ustar magic at offset 257.
func isTar(data []byte) bool {
	return len(data) >= 262 && string(data[257:262]) == "ustar"
}

// IsDICOM reports whether the entry looks like a DICOM file, either by the
// DICM preamble or by its extension.
func IsDICOM(e Entry) bool {
	if len(e.Data) >= 132 && string(e.Data[128:132]) == "DICM" {
		return true
	}
	return strings.EqualFold(path.Ext(e.Name), ".dcm")
}
