package main

import "github.com/vihalabs/giftflow/cmd"

func main() {
	cmd.Execute()
}
