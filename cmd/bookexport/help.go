package main

// Long help texts. Cobra generates the flag listings.

const rootLong = `Export a Markdown book to Markdown, PDF, EPUB and DOCX with Pandoc.

Run from the book root (or pass --root). Without a command, bookexport runs
"export" with the given flags.

Project layout:
  manuscript/            front-matter/, chapters/, back-matter/
  assets/                images, styles/<name>.css for the preview
  config/metadata.yaml   Pandoc metadata (title, author, lang)
  pyproject.toml         project name used for the output file name
  bookexport.yaml        optional settings
  .env                   optional BOOKEXPORT_* variables

Environment:
  BOOKEXPORT_CONFIG, BOOKEXPORT_LANG, BOOKEXPORT_BOOK_TYPE, BOOKEXPORT_FORMATS,
  BOOKEXPORT_TIMEOUT, BOOKEXPORT_PDF_ENGINE, BOOKEXPORT_PANDOC

Exit codes:
  0  success
  1  general error, Pandoc failure
  2  invalid flags or config
  3  missing project, invalid encoding, permission denied
  4  another export is running on the project`

const exportLong = `Build the book in every requested format.

Steps:
  1. take the project lock (.bookexport.lock)
  2. read the metadata and language; a placeholder metadata file is
     generated when config/metadata.yaml is missing
  3. normalize the TOC links
  4. rewrite image paths to absolute (see --skip-images, --keep-relative-paths)
  5. move the previous output to output_backup/
  6. run Pandoc once per format, in order: markdown, pdf, epub, docx
  7. restore relative image paths, even when a step failed
  8. validate the artifacts in the background and print a summary

Precedence: flags > BOOKEXPORT_* variables > bookexport.yaml > defaults.`

const exportExample = `  bookexport
  bookexport --format epub,pdf --book-type paperback
  bookexport export --lang fr --cover assets/covers/cover.jpg --epub2
  bookexport export --dry-run --order front-matter/toc.md,chapters`

const printLong = `Build the print version of the book: an EPUB named print-version-<type>.

Only paperback and hardcover are print book types; anything else falls back
to paperback with a warning.`

const pathsLong = `Rewrite the image paths of the manuscript, in Markdown images and <img>
tags. --to-absolute points them at files on disk; --to-relative turns
absolute paths under assets/ back into paths relative to each file.

Export does both around the Pandoc runs; this command is for manual use.`

const tocLong = `Normalize the links of the manuscript TOC file.

Modes:
  strip-to-anchors   ../chapters/01.md#intro -> #intro
  replace-ext        ../chapters/01.md#intro -> ../chapters/01.<ext>#intro`

const validateLong = `Validate a built artifact. The format is taken from the extension
unless --type is given.

  epub   mimetype, container.xml, images, cover; epubcheck when installed
  pdf    header; pdfinfo when installed
  docx   zip structure, [Content_Types].xml
  md     file exists and is not empty

Exit code: 0 ok, 1 issues, 2 file not found, 124 timeout, 127 tool missing
(only with --require-tools).`

const previewLong = `Render the manuscript to a standalone HTML file, without Pandoc.

Image paths are rewritten to file:// URLs in the HTML only; the manuscript
is not modified. Styles are looked up in assets/styles/<name>.css, then in
the built-in styles.`

const watchLong = `Export the book again whenever the manuscript, the assets or the
metadata change. Changes made by the export itself are ignored.
Stop with Ctrl-C.`

const doctorLong = `Check the tools and the project layout an export needs.

Exits 1 when the export cannot run (Pandoc missing, no manuscript).`
