package main

import "github.com/jfmyers9/scrobbledb/cmd"

func main() {
	cmd.Execute()
}
