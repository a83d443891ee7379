package main

import "github.com/minvws/nl-rdo-prs-go/cmd"

func main() {
	cmd.Execute()
}
