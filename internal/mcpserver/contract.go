package mcpserver

// NoteFormatContract describes the canonical note format that LLM consumers
// should follow when creating or updating notes.
const NoteFormatContract = `# Folio Note Format Contract

Every note stored in Folio follows this structure. Notes are edited as a
tree of blocks, so only the constructs listed below survive a save; anything
else is kept as plain paragraph text.

## Structure

` + "```" + `markdown
---
id: 7d0c9a1e-5b7f-4c8e-9a43-2f1de0b6a111   # assigned on create when missing; never change it
title: Human-readable title                  # OPTIONAL; defaults to the first "# " heading
tags:                                        # OPTIONAL; YAML list
  - tag-one
published: false                             # OPTIONAL; managed by the publish endpoints
created: 2025-01-15T09:30:00Z                # assigned on create when missing
---

# Heading one

## Heading two

Paragraph with **bold**, *italic*, <u>underline</u> and ` + "`code`" + ` text.
A link to another note: [[7d0c9a1e-5b7f-4c8e-9a43-2f1de0b6a222|Display title]].

- bulleted item
  - nested item

1. numbered item

> quoted paragraph
` + "```" + `

## Rules

1. **Frontmatter** fences must be the first thing in the file. Keys are
   English schema fields; values may use any language.
2. **Blocks** are separated by one blank line. Supported blocks: paragraph,
   "# " heading one, "## " heading two, "- " bulleted list, "1. " numbered
   list, "> " block quote and fenced code blocks.
3. **Lists** nest by indenting content to the width of the item marker
   (two spaces under "- ", three under "1. "). List items hold text plus
   nested blocks.
4. **Marks** are bold ` + "`**`" + `, italic ` + "`*`" + `, underline ` + "`<u></u>`" + ` and
   code ` + "`` ` ``" + `. Code blocks hold unmarked text.
5. **Links** are ` + "`[[id|Display]]`" + ` where id is the target note's frontmatter id.
   ` + "`[[id]]`" + ` shows the id itself. Display text is refreshed from the target's
   title when a note is published.
6. **Line breaks** inside a block end the line with a backslash. An empty
   paragraph is written as ` + "`<br>`" + `.
7. **Special characters** are escaped with a backslash when meant literally:
   ` + "`\\ * _ [ ] < >`" + ` and a leading ` + "`#`, `>`, `-`" + ` or list number.
8. **Encoding** is UTF-8 with a trailing newline. File paths end with ` + "`.md`" + `
   and use forward slashes.

## Tools

- ` + "`format_note`" + ` toggles a mark or block type on the first match of a text
  and saves the note; prefer it over rewriting a whole note.
- ` + "`import_note`" + ` creates a note from a Markdown or text file at a URL.
`
