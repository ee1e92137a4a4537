package main

import "github.com/dream-factory-code/go-tolar/cmd"

func main() {
	cmd.Execute()
}
