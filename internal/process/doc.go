// Package process manages the process groups of external tools so a
// cancelled export does not leave Pandoc or its PDF engine running.
package process
