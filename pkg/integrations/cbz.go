package integrations

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/zip"
)

// CBZPacker stores a staged folder as a comic book zip. Pages are already
// compressed images, so entries are stored without deflate.
type CBZPacker struct{}

func NewCBZPacker() *CBZPacker {
	return &CBZPacker{}
}

func (p *CBZPacker) Ext() string { return ".cbz" }

func (p *CBZPacker) Pack(srcDir, dst, _ string) error {
	var files []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", srcDir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no pages found in %s", srcDir)
	}
	slices.SortFunc(files, naturalPathCompare)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	for _, name := range files {
		if err := addZipEntry(zw, srcDir, name); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return out.Close()
}

func addZipEntry(zw *zip.Writer, srcDir, name string) error {
	f, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	_, err = io.Copy(w, f)
	return err
}
