package main

import (
	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/assets"
	"github.com/alnah/go-bookexport/internal/config"
)

// flagCompletion describes how the value of a flag completes.
type flagCompletion struct {
	values     func() []string // fixed choices
	extensions []string        // file completion filtered by extension
	dirs       bool            // directory completion
}

// flagCompletions applies to every command that defines the flag.
var flagCompletions = map[string]flagCompletion{
	"format":        {values: bookexport.FormatNames},
	"export-format": {values: bookexport.FormatNames},
	"book-type":     {values: func() []string { return config.KnownBookTypes }},
	"toc-mode":      {values: func() []string { return config.KnownTOCModes }},
	"mode":          {values: func() []string { return config.KnownTOCModes }},
	"style":         {values: assets.StyleNames},
	"type":          {values: validateTypeNames},
	"cover":         {extensions: []string{"jpg", "jpeg", "png", "gif", "webp"}},
	"config":        {extensions: []string{"yaml", "yml"}},
	"toc":           {extensions: []string{"md"}},
	"root":          {dirs: true},
}

// registerCompletions walks the command tree and registers the value
// completions of flagCompletions.
func registerCompletions(cmd *cobra.Command) {
	for name, fc := range flagCompletions {
		if cmd.LocalNonPersistentFlags().Lookup(name) == nil && cmd.PersistentFlags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, fc.complete)
	}
	for _, sub := range cmd.Commands() {
		registerCompletions(sub)
	}
}

func (fc flagCompletion) complete(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch {
	case fc.values != nil:
		return fc.values(), cobra.ShellCompDirectiveNoFileComp
	case fc.dirs:
		return nil, cobra.ShellCompDirectiveFilterDirs
	case len(fc.extensions) > 0:
		return fc.extensions, cobra.ShellCompDirectiveFilterFileExt
	default:
		return nil, cobra.ShellCompDirectiveDefault
	}
}
