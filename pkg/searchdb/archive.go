package searchdb

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const dbFileName = "search.db"

// WriteTarGz writes a gzip-compressed tar archive containing a
// transactionally-consistent copy of the engine's on-disk database to w.
// It is safe to call while the engine is serving other readers and
// writers: it uses a single bbolt read transaction, so the archived bytes
// reflect one atomic point in time.
func (e *Engine) WriteTarGz(w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := e.db.View(func(tx *bolt.Tx) error {
		size := tx.Size()
		if err := tw.WriteHeader(&tar.Header{
			Name: dbFileName,
			Mode: 0600,
			Size: size,
		}); err != nil {
			return err
		}
		n, err := tx.WriteTo(tw)
		if err != nil {
			return err
		}
		if n != size {
			return fmt.Errorf("searchdb: short write archiving database: wrote %d of %d bytes", n, size)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// ExtractTarGz unpacks a gzip-compressed tar archive produced by
// WriteTarGz into destDir, creating it if necessary. It is the inverse of
// WriteTarGz and is used when installing a snapshot streamed from a
// leader: the archive is opaque to the consensus layer, so this function
// never interprets its contents beyond "a directory tree".
func ExtractTarGz(r io.Reader, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.Contains(hdr.Name, "..") {
			return fmt.Errorf("searchdb: refusing to extract unsafe path %q", hdr.Name)
		}
		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}
