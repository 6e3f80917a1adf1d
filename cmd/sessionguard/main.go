package main

import "github.com/Sentinel-Gate/sessionguard/cmd/sessionguard/cmd"

func main() {
	cmd.Execute()
}
