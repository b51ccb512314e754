package main

import "github.com/jmcleod/gatehouse/cmd/gatehouse/cmd"

func main() {
	cmd.Execute()
}
