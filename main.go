package main

import "github.com/josephlewis42/gosed/cmd"

func main() {
	cmd.Execute()
}
