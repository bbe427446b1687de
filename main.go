package main

import "github.com/KaramelBytes/sqlquest-cli/cmd"

func main() {
	cmd.Execute()
}
