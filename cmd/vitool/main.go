package main

import (
	"github.com/DrSkyle/vitool/cmd/vitool/commands"
)

func main() {
	commands.Execute()
}
