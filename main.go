// SPDX-License-Identifier: MPL-2.0

// rtvm is a per-directory runtime version manager.
package main

import cmd "github.com/rtvm/rtvm/cmd/rtvm"

func main() {
	cmd.Execute()
}
