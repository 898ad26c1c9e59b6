// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"os"
	"strings"
)

type fish struct{}

func (fish) Name() string { return "fish" }

// SetEnv assigns PATH as a list, the way fish stores it.
func (fish) SetEnv(name, value string) string {
	if name != "PATH" {
		return fmt.Sprintf("set -gx %s %s;\n", name, quoteFish(value))
	}
	parts := strings.Split(value, string(os.PathListSeparator))
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			quoted = append(quoted, quoteFish(p))
		}
	}
	return fmt.Sprintf("set -gx PATH %s;\n", strings.Join(quoted, " "))
}

func (fish) UnsetEnv(name string) string {
	return fmt.Sprintf("set -e %s;\n", name)
}

func (fish) Activate(opts ActivateOptions) string {
	hook := hookCommand(opts, quoteFish, "fish")
	return fmt.Sprintf(`function __rtvm_env_eval --on-event fish_prompt --description 'Update rtvm environment'
    %[1]s | source
end
function __rtvm_cd_hook --on-variable PWD --description 'Update rtvm environment on cd'
    %[1]s | source
end
__rtvm_env_eval
`, hook)
}

func (fish) Deactivate() string {
	return "functions --erase __rtvm_env_eval __rtvm_cd_hook\n"
}

// quoteFish single-quotes s; inside fish single quotes only \ and ' are special.
func quoteFish(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
