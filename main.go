package main

import "github.com/harry-hov/tcpls/cmd"

func main() {
	cmd.Execute()
}
