package main

import "github.com/tkrueger/chatlens/cmd"

func main() {
	cmd.Execute()
}
