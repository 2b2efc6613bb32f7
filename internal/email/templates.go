package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"sort"
	texttemplate "text/template"
)

// TemplateRoot is the directory inside assessly.EmailFS holding one
// subdirectory per notification kind, each with html.tmpl and plaintext.tmpl.
const TemplateRoot = "templates/emails"

// Rendered is the two bodies of a multipart/alternative message.
type Rendered struct {
	HTML string
	Text string
}

type templatePair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Catalog holds the parsed template pair for each notification kind.
type Catalog struct {
	kinds map[string]templatePair
}

// LoadCatalog parses every notification kind under root.
func LoadCatalog(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	c := &Catalog{kinds: make(map[string]templatePair)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kind := entry.Name()
		dir := path.Join(root, kind)

		html, err := htmltemplate.ParseFS(fsys, path.Join(dir, "html.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("parsing %s html body: %w", kind, err)
		}
		text, err := texttemplate.ParseFS(fsys, path.Join(dir, "plaintext.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("parsing %s plaintext body: %w", kind, err)
		}
		c.kinds[kind] = templatePair{html: html, text: text}
	}

	if len(c.kinds) == 0 {
		return nil, fmt.Errorf("no notification templates under %s", root)
	}
	return c, nil
}

// Kinds lists the loaded notification kinds in name order.
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.kinds))
	for kind := range c.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Render executes both bodies of kind against data.
func (c *Catalog) Render(kind string, data any) (Rendered, error) {
	pair, ok := c.kinds[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown notification template %q", kind)
	}

	var html, text bytes.Buffer
	if err := pair.html.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("rendering %s html body: %w", kind, err)
	}
	if err := pair.text.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("rendering %s plaintext body: %w", kind, err)
	}
	return Rendered{HTML: html.String(), Text: text.String()}, nil
}
