package main

import "github.com/cultureradar/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
