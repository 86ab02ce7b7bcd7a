// SPDX-License-Identifier: MPL-2.0

// Command pixienv activates pixi environments and runs their tasks.
package main

import cmd "github.com/pixienv/pixienv/cmd/pixienv"

func main() {
	cmd.Execute()
}
