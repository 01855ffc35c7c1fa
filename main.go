package main

import (
	"fmt"
	"os"

	"aux-cloud-terminal/cmd"
	"aux-cloud-terminal/pkg/core"
)

const VERSION = "0.1.0"

func main() {
	core.InitLogger()

	if err := cmd.Execute(VERSION); err != nil {
		fmt.Println("Command execution failed")
		os.Exit(1)
	}
}
