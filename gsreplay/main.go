// Command gsreplay replays and inspects GS bus dumps.
package main

import "github.com/sarchlab/gsreplay/gsreplay/cmd"

func main() {
	cmd.Execute()
}
