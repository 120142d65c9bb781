package main

import "scrapecast/cmd"

func main() {
	cmd.Execute()
}
