package main

import "twister-backend/cli"

func main() {
	cli.Execute()
}
