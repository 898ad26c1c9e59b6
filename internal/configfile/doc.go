// SPDX-License-Identifier: MPL-2.0

// Package configfile discovers and parses per-directory version files.
//
// Directories are walked from the filesystem root down to the working
// directory, so files closer to the working directory come later and win.
// Two project formats are understood: asdf-style .tool-versions files and
// .rtvm.toml files, which may also define plugin aliases. Legacy per-language
// files (.nvmrc, .python-version, ...) are located here but parsed by the
// plugin that claims them.
package configfile
