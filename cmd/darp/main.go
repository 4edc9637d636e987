package main

import "dial-a-ride/internal/cli"

func main() {
	cli.Execute()
}
