package integrations

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
)

// EPUBPacker binds a staged folder into a fixed layout EPUB. A volume folder
// holds one subfolder per chapter and each becomes a section; a loose chapter
// folder becomes a single section.
type EPUBPacker struct {
	processor *PageProcessor
	author    string
	language  string
}

func NewEPUBPacker(processor *PageProcessor, author, language string) *EPUBPacker {
	if processor == nil {
		processor = NewPageProcessor(PageSettings{})
	}
	if language == "" {
		language = "en"
	}
	return &EPUBPacker{processor: processor, author: author, language: language}
}

func (p *EPUBPacker) Ext() string { return ".epub" }

func (p *EPUBPacker) Pack(srcDir, dst, title string) error {
	e, err := epub.NewEpub(title)
	if err != nil {
		return fmt.Errorf("failed to create EPub: %w", err)
	}
	if p.author != "" {
		e.SetAuthor(p.author)
	}
	e.SetLang(p.language)

	// go-epub reads images on Write, so processed pages live until then.
	work, err := os.MkdirTemp("", "mangodl-epub-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	sections, err := subdirs(srcDir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", srcDir, err)
	}

	b := &epubBuild{packer: p, e: e, work: work}
	if len(sections) == 0 {
		if err := b.addSection(srcDir, filepath.Base(srcDir)); err != nil {
			return err
		}
	}
	for _, name := range sections {
		if err := b.addSection(filepath.Join(srcDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	if b.pages == 0 {
		return fmt.Errorf("no pages found in %s", srcDir)
	}

	if err := e.SetCover(b.cover, ""); err != nil {
		return fmt.Errorf("failed to set cover: %w", err)
	}
	if err := e.Write(dst); err != nil {
		return fmt.Errorf("failed to write EPub: %w", err)
	}
	return nil
}

type epubBuild struct {
	packer *EPUBPacker
	e      *epub.Epub
	work   string
	pages  int
	cover  string
}

// addSection adds every page of dir to the book under one heading
func (b *epubBuild) addSection(dir, heading string) error {
	files, err := imageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(heading))

	for i, path := range files {
		source, err := b.prepare(path)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", filepath.Base(path), err)
		}
		internal, err := b.e.AddImage(source, fmt.Sprintf("page%05d%s", b.pages, strings.ToLower(filepath.Ext(source))))
		if err != nil {
			return fmt.Errorf("failed to add image %s: %w", filepath.Base(path), err)
		}
		if b.cover == "" {
			b.cover = internal
		}
		b.pages++
		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n",
			internal, i+1,
		)
	}

	if _, err := b.e.AddSection(body.String(), heading, "", ""); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}
	return nil
}

// prepare runs a page through the processor, returning the path go-epub
// should read it from.
func (b *epubBuild) prepare(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	out, ext, err := b.packer.processor.Process(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	if bytes.Equal(out, raw) && strings.EqualFold(filepath.Ext(path), ext) {
		return path, nil
	}
	name := fmt.Sprintf("%04d%s", b.pages, ext)
	target := filepath.Join(b.work, name)
	if err := os.WriteFile(target, out, 0644); err != nil {
		return "", err
	}
	return target, nil
}
