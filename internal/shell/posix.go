// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// posix covers bash and zsh, which share assignment syntax.
type posix struct {
	name string
}

func (p posix) Name() string { return p.name }

func (p posix) SetEnv(name, value string) string {
	return fmt.Sprintf("export %s=%s;\n", name, quotePOSIX(value))
}

func (p posix) UnsetEnv(name string) string {
	return fmt.Sprintf("unset %s;\n", name)
}

func (p posix) Activate(opts ActivateOptions) string {
	hook := hookCommand(opts, quotePOSIX, p.name)
	if p.name == "zsh" {
		return fmt.Sprintf(`_rtvm_hook() {
  eval "$(%s)";
}
typeset -ag precmd_functions;
if [[ -z "${precmd_functions[(r)_rtvm_hook]+1}" ]]; then
  precmd_functions=( _rtvm_hook ${precmd_functions[@]} )
fi
typeset -ag chpwd_functions;
if [[ -z "${chpwd_functions[(r)_rtvm_hook]+1}" ]]; then
  chpwd_functions=( _rtvm_hook ${chpwd_functions[@]} )
fi
_rtvm_hook
`, hook)
	}
	return fmt.Sprintf(`_rtvm_hook() {
  local previous_exit_status=$?;
  eval "$(%s)";
  return $previous_exit_status;
};
if [[ ";${PROMPT_COMMAND:-};" != *";_rtvm_hook;"* ]]; then
  PROMPT_COMMAND="_rtvm_hook${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
fi
_rtvm_hook
`, hook)
}

func (p posix) Deactivate() string {
	if p.name == "zsh" {
		return `precmd_functions=( ${precmd_functions:#_rtvm_hook} )
chpwd_functions=( ${chpwd_functions:#_rtvm_hook} )
unset -f _rtvm_hook
`
	}
	return `PROMPT_COMMAND="${PROMPT_COMMAND//_rtvm_hook;/}"
PROMPT_COMMAND="${PROMPT_COMMAND//_rtvm_hook/}"
unset -f _rtvm_hook
`
}

// quotePOSIX quotes s for bash and zsh. Strings syntax.Quote rejects, such
// as those holding NUL bytes, fall back to plain single quoting.
func quotePOSIX(s string) string {
	if q, err := syntax.Quote(s, syntax.LangBash); err == nil {
		return q
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
