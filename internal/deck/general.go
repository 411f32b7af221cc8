package deck

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cast"

	"github.com/starford/deckhand/internal/document"
)

// Markdown rendering modes.
const (
	MarkdownAuto      = "auto"
	MarkdownInline    = "inline"
	MarkdownParagraph = "paragraph"
)

// Recognized keys of the "general" section. Within a group the first key
// present wins.
var (
	keysName        = []string{"name"}
	keysStylesheet  = []string{"stylesheet", "styles", "css", "style"}
	keysHeader      = []string{"header"}
	keysTemplate    = []string{"template"}
	keysOutput      = []string{"output", "destination", "dest"}
	keysIconPath    = []string{"icon_path", "icon_dir", "icon_root"}
	keysCardSpacing = []string{"card_spacing", "spacing"}
	keysEmbedStyles = []string{"embed_styles", "embed_css"}
	keysMarkdown    = []string{"markdown", "md_config", "md", "md_conf", "markdown_config"}
)

// General holds the deck-wide options of the "general" section. Auxiliary
// references keep the declared value; resolved paths live on State.
type General struct {
	Name        string         `json:"name"`
	Stylesheet  string         `json:"stylesheet,omitempty"`
	Header      string         `json:"header,omitempty"`
	Template    string         `json:"template,omitempty"`
	Output      string         `json:"output"`
	IconPath    string         `json:"icon_path"`
	CardSpacing string         `json:"card_spacing"`
	EmbedStyles bool           `json:"embed_styles"`
	Markdown    MarkdownConfig `json:"markdown"`
}

// MarkdownConfig configures the renderer's Markdown filters.
type MarkdownConfig struct {
	Extensions       []string      `json:"extensions"`
	ExtensionConfigs *document.Map `json:"extension_configs,omitempty"`
	DefaultMode      string        `json:"default_mode"`
}

// Validate validates the general options.
func (g *General) Validate() error {
	if err := validation.ValidateStruct(g,
		validation.Field(&g.Name, validation.Required),
		validation.Field(&g.Output, validation.Required),
		validation.Field(&g.CardSpacing, validation.Required),
	); err != nil {
		return err
	}
	return g.Markdown.Validate()
}

// Validate validates the markdown options.
func (m *MarkdownConfig) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.DefaultMode, validation.Required, validation.In(MarkdownAuto, MarkdownInline, MarkdownParagraph)),
	)
}

// parseGeneral reads the "general" section. stem is the default deck name.
func parseGeneral(section any, stem string) (General, error) {
	g := General{
		Name:        stem,
		IconPath:    ".",
		CardSpacing: "2pt",
		Markdown: MarkdownConfig{
			Extensions:  []string{"smarty"},
			DefaultMode: MarkdownAuto,
		},
	}
	if section == nil {
		g.Output = g.Name + ".html"
		return g, nil
	}
	m, ok := section.(*document.Map)
	if !ok {
		return g, fmt.Errorf("general must be a mapping")
	}

	str := func(dst *string, keys []string) error {
		v, ok := document.First(m, keys...)
		if !ok || v == nil {
			return nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Errorf("general.%s: %w", keys[0], err)
		}
		*dst = s
		return nil
	}
	for _, f := range []struct {
		dst  *string
		keys []string
	}{
		{&g.Name, keysName},
		{&g.Stylesheet, keysStylesheet},
		{&g.Header, keysHeader},
		{&g.Template, keysTemplate},
		{&g.Output, keysOutput},
		{&g.IconPath, keysIconPath},
		{&g.CardSpacing, keysCardSpacing},
	} {
		if err := str(f.dst, f.keys); err != nil {
			return g, err
		}
	}
	if g.Output == "" {
		g.Output = g.Name + ".html"
	}

	if v, ok := document.First(m, keysEmbedStyles...); ok && v != nil {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return g, fmt.Errorf("general.embed_styles: %w", err)
		}
		g.EmbedStyles = b
	}

	if v, ok := document.First(m, keysMarkdown...); ok && v != nil {
		md, err := parseMarkdown(v, g.Markdown)
		if err != nil {
			return g, err
		}
		g.Markdown = md
	}
	return g, nil
}

func parseMarkdown(v any, md MarkdownConfig) (MarkdownConfig, error) {
	m, ok := v.(*document.Map)
	if !ok {
		return md, fmt.Errorf("general.markdown must be a mapping")
	}
	if raw, ok := m.Get("extensions"); ok && raw != nil {
		exts, err := cast.ToStringSliceE(raw)
		if err != nil {
			return md, fmt.Errorf("general.markdown.extensions: %w", err)
		}
		md.Extensions = exts
	}
	if raw, ok := m.Get("extension_configs"); ok && raw != nil {
		cfg, ok := raw.(*document.Map)
		if !ok {
			return md, fmt.Errorf("general.markdown.extension_configs must be a mapping")
		}
		md.ExtensionConfigs = document.Clone(cfg)
	}
	if raw, ok := m.Get("default_mode"); ok && raw != nil {
		mode, err := cast.ToStringE(raw)
		if err != nil {
			return md, fmt.Errorf("general.markdown.default_mode: %w", err)
		}
		md.DefaultMode = mode
	}
	return md, nil
}
