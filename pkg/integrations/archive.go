package integrations

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/kerbaras/mangodl/pkg/data"
	"github.com/kerbaras/mangodl/pkg/volumes"
	"github.com/sirupsen/logrus"
)

// ArchiveBuilder stages downloaded chapters into volume folders under a
// manga's base directory and packs every staged folder into one archive.
type ArchiveBuilder struct {
	base   string
	packer Packer
	log    *logrus.Entry
}

func NewArchiveBuilder(base string, packer Packer, log *logrus.Entry) *ArchiveBuilder {
	if packer == nil {
		packer = NewCBZPacker()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ArchiveBuilder{base: base, packer: packer, log: log}
}

// VolumeFolder is the staging folder (and archive stem) for one volume.
func VolumeFolder(title string, v data.VolumeNumber) string {
	return data.SanitizeFilename(fmt.Sprintf("%s, Vol. %s", title, v))
}

// Build copies every downloaded chapter into its volume folder, or into a
// folder of its own when it has no volume, then packs each folder. It returns
// the archives written. A folder with a chapter that could not be staged, or
// whose archive fails, is left in place and the error is joined into the
// result; the other folders are still packed.
func (b *ArchiveBuilder) Build(title string, assignment volumes.Assignment, chapters []*data.Chapter) ([]string, error) {
	staged := make(map[string]bool)
	var errs []error
	for _, ch := range chapters {
		if !ch.Downloaded || ch.FilePath == "" {
			continue
		}

		folder := b.folderOf(title, assignment, ch)
		dst := filepath.Join(b.base, folder)
		if folder != ch.FolderName() {
			dst = filepath.Join(dst, ch.FolderName())
		}

		if err := copyTree(ch.FilePath, dst); err != nil {
			b.log.WithError(err).WithField("chapter", ch.Label()).Error("Failed to stage chapter")
			errs = append(errs, fmt.Errorf("failed to stage %s: %w", ch.Label(), err))
			staged[folder] = false
			continue
		}
		if _, seen := staged[folder]; !seen {
			staged[folder] = true
		}
	}

	folders := make([]string, 0, len(staged))
	for f, ok := range staged {
		if ok {
			folders = append(folders, f)
		}
	}
	slices.SortFunc(folders, naturalCompare)

	var archives []string
	for _, folder := range folders {
		archive, err := b.pack(folder)
		if err != nil {
			b.log.WithError(err).WithField("folder", folder).Error("Failed to build archive")
			errs = append(errs, err)
			continue
		}
		b.log.WithField("archive", archive).Info("Archive written")
		archives = append(archives, archive)
	}
	return archives, errors.Join(errs...)
}

// ArchivePath is the archive a chapter ends up in once Build succeeds.
func (b *ArchiveBuilder) ArchivePath(title string, assignment volumes.Assignment, ch *data.Chapter) string {
	return filepath.Join(b.base, b.folderOf(title, assignment, ch)+b.packer.Ext())
}

// folderOf is the staging folder of ch: its volume, or its own folder when
// it has none.
func (b *ArchiveBuilder) folderOf(title string, assignment volumes.Assignment, ch *data.Chapter) string {
	if ch.Number != nil {
		if v, ok := assignment.Volume(*ch.Number); ok {
			return VolumeFolder(title, v)
		}
	}
	return ch.FolderName()
}

// pack writes the archive as a .part file, renames it into place and only
// then removes the staged folder.
func (b *ArchiveBuilder) pack(folder string) (string, error) {
	src := filepath.Join(b.base, folder)
	archive := filepath.Join(b.base, folder+b.packer.Ext())
	part := archive + ".part"

	if err := b.packer.Pack(src, part, folder); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("failed to pack %s: %w", folder, err)
	}
	if err := os.Rename(part, archive); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("failed to move %s into place: %w", archive, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return "", fmt.Errorf("failed to remove staged folder %s: %w", src, err)
	}
	return archive, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
