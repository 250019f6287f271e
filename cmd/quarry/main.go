package main

import "github.com/quarryvcs/quarry/cli"

func main() {
	cli.Execute()
}
