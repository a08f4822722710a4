// This program is a command line wallet for the bitsim node.
package main

import "github.com/bitsim/node/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
