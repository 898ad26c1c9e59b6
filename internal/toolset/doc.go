// SPDX-License-Identifier: MPL-2.0

// Package toolset turns version specs into a working environment.
//
// The pipeline has four stages. Sources collects specs from the global config,
// legacy files, project files, RTVM_<PLUGIN>_VERSION variables and command-line
// arguments, lowest precedence first. Resolve merges them into a Toolset with one
// entry per plugin, applying aliases. Installer concretizes each entry against the
// installed and remote version lists and installs what is missing under the
// configured MissingRuntimeBehavior. BuildEnv converts the installed entries into
// an EnvPatch: a PATH prefix and a set of variables.
//
// Resolve and BuildEnv are deterministic for a given input. Only the install
// phase runs in parallel.
package toolset
