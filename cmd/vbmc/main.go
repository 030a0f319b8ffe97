// Command vbmc is the command-line client for vbmcd, translating verbs
// into RPC requests.
package main

import "vbmcd/cmd/vbmc/cmd"

func main() {
	cmd.Execute()
}
