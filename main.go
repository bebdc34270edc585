// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/modwatch/cmd/modwatch"

func main() {
	cmd.Execute()
}
