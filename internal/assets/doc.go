// Package assets provides the CSS styles used by the HTML preview.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem (built-in styles)
//	    ├── FilesystemLoader  - loads from the project's assets directory
//	    └── AssetResolver     - combines both with custom-first fallback
//
// A project overrides or adds a style by placing {name}.css under
// assets/styles/. Names are validated and resolved paths must stay inside
// the base directory, symlinks included.
package assets
