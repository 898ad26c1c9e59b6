// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	VersionSpecInvalidId
	PluginNotFoundId
	VersionNotFoundId
	InstallFailedId
	AliasUnresolvedId
	ShellNotSupportedId
	HookEnvFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the Markdown guidance with the named glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

rtvm could not read or validate its settings.

## Configuration file locations:
- $RTVM_CONFIG_DIR/config.cue, when set
- Linux: ~/.config/rtvm/config.cue
- macOS: ~/Library/Application Support/rtvm/config.cue
- Windows: %APPDATA%\rtvm\config.cue

Every setting can also come from an RTVM_* environment variable, for example
RTVM_MISSING_RUNTIME_BEHAVIOR or RTVM_JOBS. Check those too.

## Things you can try:
- Create a default configuration:
~~~
$ rtvm config init
~~~

- Show what rtvm would use:
~~~
$ rtvm config dump
~~~

## Example configuration:
~~~cue
jobs: 4
missing_runtime_behavior: "autoinstall"
tools: node: "20"
aliases: node: lts: "20.10.0"
~~~`,
	}

	versionSpecInvalidIssue = &Issue{
		id: VersionSpecInvalidId,
		mdMsg: `
# Invalid version spec!

A version file or command-line argument contains a spec rtvm cannot parse.
The error message names the file and line it came from.

## Accepted forms:
- ` + "`20.10.0`" + ` an exact version
- ` + "`20`" + ` or ` + "`3.11`" + ` the newest version with that prefix
- ` + "`prefix:1.2`" + ` an explicit prefix
- ` + "`latest`" + ` the newest stable version
- ` + "`lts`" + ` or any other alias defined for the plugin
- ` + "`system`" + ` whatever is already on your PATH

## .tool-versions example:
~~~
node 20.10.0
python 3.11
~~~`,
	}

	pluginNotFoundIssue = &Issue{
		id: PluginNotFoundId,
		mdMsg: `
# Plugin not found!

A version file pins a tool that has no plugin installed.

## Things you can try:
- List installed plugins:
~~~
$ rtvm plugins ls
~~~

- Install the plugin into $RTVM_DATA_DIR/plugins/<name> (any asdf-compatible
  plugin works), or remove the tool from your version files.`,
	}

	versionNotFoundIssue = &Issue{
		id: VersionNotFoundId,
		mdMsg: `
# No matching version!

The requested version is neither installed nor offered by the plugin.

## Things you can try:
- See which versions the plugin offers:
~~~
$ rtvm ls-remote <plugin>
~~~

- Use a prefix such as ` + "`20`" + ` instead of a full version.`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Some tools failed to install!

rtvm installed what it could; the tools listed in the error were skipped and
are not on your PATH. Partial install directories were removed.

## Things you can try:
- Retry just the failing tool with verbose output:
~~~
$ rtvm --verbose install node@20.10.0
~~~

- Lower parallelism if installs compete for resources:
~~~
$ RTVM_JOBS=1 rtvm install
~~~`,
	}

	aliasUnresolvedIssue = &Issue{
		id: AliasUnresolvedId,
		mdMsg: `
# Unknown alias!

A version file uses an alias that is not defined for the plugin.

## Define it in your global config:
~~~cue
aliases: node: lts: "20.10.0"
~~~

## Or in .rtvm.toml:
~~~toml
[alias.node]
lts = "20.10.0"
~~~

Run ` + "`rtvm alias ls`" + ` to see every alias rtvm knows.`,
	}

	shellNotSupportedIssue = &Issue{
		id: ShellNotSupportedId,
		mdMsg: `
# Unsupported shell!

rtvm can activate itself in bash, zsh, fish and elvish.

## Add one of these to your shell's startup file:
~~~
eval "$(rtvm activate bash)"
eval "$(rtvm activate zsh)"
rtvm activate fish | source
eval (rtvm activate elvish | slurp)
~~~`,
	}

	hookEnvFailedIssue = &Issue{
		id: HookEnvFailedId,
		mdMsg: `
# Shell environment was not updated!

The prompt hook could not compute the environment for this directory, so the
previous tool versions are still active.

## Things you can try:
- Inspect what rtvm resolves here:
~~~
$ rtvm current
$ rtvm ls
~~~

- Reset the shell's rtvm state:
~~~
$ eval "$(rtvm deactivate -s bash)"
~~~`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		versionSpecInvalidIssue.Id(): versionSpecInvalidIssue,
		pluginNotFoundIssue.Id():     pluginNotFoundIssue,
		versionNotFoundIssue.Id():    versionNotFoundIssue,
		installFailedIssue.Id():      installFailedIssue,
		aliasUnresolvedIssue.Id():    aliasUnresolvedIssue,
		shellNotSupportedIssue.Id():  shellNotSupportedIssue,
		hookEnvFailedIssue.Id():      hookEnvFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
