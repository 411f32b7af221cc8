package mcpserver

// DefinitionFormat describes the deck definition document format so LLM
// consumers can write or review decks.
const DefinitionFormat = `# Deck Definition Format

A deck is a YAML (` + "`.yaml`, `.yml`" + `) or JSON-with-comments (` + "`.json`, `.jsonc`" + `)
document whose top level is a mapping.

## Structure

` + "```" + `yaml
extends: base.yaml          # OPTIONAL – parent definition, relative to this file
title: Spell Cards          # OPTIONAL – display title
general:                    # OPTIONAL – deck-wide options
  name: spells              # output base name; defaults to the file stem
  stylesheet: spells.css    # defaults to <stem>.css when present
  header: header.html       # defaults to <stem>.html.header when present
  template: spells.html     # defaults to the first <stem>.<ext> found
  output: spells.html       # defaults to <name>.html
  icon_path: icons          # directory for icon lookups; default "."
  card_spacing: 2pt
  embed_styles: false
  markdown:
    extensions: [smarty]
    default_mode: auto      # auto | inline | paragraph
default:                    # OPTIONAL – fields merged into every card
  copies: 1
cards:                      # REQUIRED – mapping of id to card, or list of cards
  fireball:
    title: Fireball
    copies: 2
` + "```" + `

## Rules

1. **Inheritance.** ` + "`extends`" + ` names one parent. The child is merged over the fully
   resolved parent: mappings merge recursively, lists concatenate, anything else
   is replaced. Cycles and missing parents are errors.
2. **Cards.** In mapping form the key is the card id. In list form ids are
   ` + "`card1`, `card2`" + `, ... in document order. Do not switch forms across an
   ` + "`extends`" + ` chain. Each card exposes its id as ` + "`_id`" + `.
3. **Defaults.** ` + "`default`" + ` fields are applied to each card; card fields win.
4. **Copies.** ` + "`copies`" + ` is a non-negative integer. Negative values clamp to 0,
   unparseable values fall back to the default count with a warning. Cards with 0 copies are kept
   but not rendered.
5. **Templates.** The template is searched with the extensions
   ` + "`.html.jinja2, .jinja2, .html.j2, .j2, .html.tmpl, .tmpl, .gohtml, .html`" + `.
   A deck without a template does not resolve.
6. **Paths** in ` + "`general`" + ` are relative to the file that declares them.
`
