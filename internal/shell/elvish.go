// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"strings"
)

type elvish struct{}

func (elvish) Name() string { return "elvish" }

func (elvish) SetEnv(name, value string) string {
	return fmt.Sprintf("set-env %s %s\n", name, quoteElvish(value))
}

func (elvish) UnsetEnv(name string) string {
	return fmt.Sprintf("unset-env %s\n", name)
}

func (elvish) Activate(opts ActivateOptions) string {
	hook := hookCommand(opts, quoteElvish, "elvish")
	return fmt.Sprintf(`var __rtvm_hook~ = { eval (%s | slurp) }
set edit:before-readline = [$@edit:before-readline $__rtvm_hook~]
__rtvm_hook
`, hook)
}

func (elvish) Deactivate() string {
	return "set edit:before-readline = [(each {|f| if (not-eq $f $__rtvm_hook~) { put $f } } $edit:before-readline)]\n"
}

// quoteElvish single-quotes s; elvish escapes a quote by doubling it.
func quoteElvish(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
