// Command busim builds a simulated bus system from a config file and drives
// accesses through it.
package main

import "github.com/sarchlab/busim/busim/cmd"

func main() {
	cmd.Execute()
}
