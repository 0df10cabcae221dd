package mcpserver

// DirectiveReference documents the note directives and reference codes that
// LLM consumers can write into notes to steer image processing.
const DirectiveReference = `# vaultsnap Directive Reference

Directives are ` + "`" + `$key=value` + "`" + ` tokens anywhere in a Markdown note. The most
recently edited note in the vault receives every new image, and its directives
override the global settings for that image. When a key appears more than once,
the last occurrence wins.

## Keys

| Directive | Short forms | Value |
|---|---|---|
| ` + "`" + `$prefix=` + "`" + ` | ` + "`" + `$pre=` + "`" + ` | non-whitespace text, the file name prefix |
| ` + "`" + `$quality=` + "`" + ` | | JPEG quality, digits, clamped to 1-100 |
| ` + "`" + `$format=` + "`" + ` | | rest of line, a template containing ` + "`" + `{filename}` + "`" + ` |
| ` + "`" + `$separator=` + "`" + ` | ` + "`" + `$sep=` + "`" + ` | rest of line, may be empty |
| ` + "`" + `$convert=` + "`" + ` | | true/false/on/off/yes/no |
| ` + "`" + `$rename=` + "`" + ` | | true/false/on/off/yes/no |
| ` + "`" + `$numbering=` + "`" + ` | ` + "`" + `$num=` + "`" + ` | true/false/on/off/yes/no |
| ` + "`" + `$bg_color=` + "`" + ` | ` + "`" + `$bgcolor=` + "`" + `, ` + "`" + `$bg=` + "`" + ` | hex color, ` + "`" + `#` + "`" + ` optional |

Keys are case-insensitive. Boolean words other than the six above are ignored.

## Reference codes

The default code appended to the note is ` + "`" + `[[File:Prefix_N.ext]]` + "`" + `, optionally
with a caption: ` + "`" + `[[File:Prefix_N.ext|caption]]` + "`" + `. Prefixes never contain an
underscore. Existing codes drive auto-numbering: the next image gets the highest
number used with the same prefix, plus one.

## Prefix resolution order

1. Automatic prefix from the note name (when enabled in settings).
2. Override prefix from settings.
3. ` + "`" + `$prefix=` + "`" + ` directive.
4. Most frequent prefix among existing codes (when numbering is enabled).
5. Default prefix from settings.

## Example

` + "```" + `markdown
# Boss rush
$prefix=Boss
$sep=---
$format=![[{filename}]]

![[Boss_1.png]]
` + "```" + `

The next image becomes ` + "`" + `Boss_2.png` + "`" + ` and the note gains
` + "`" + `---![[Boss_2.png]]` + "`" + ` on a new line.
`
