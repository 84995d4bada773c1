package main

import "mediapool-bot/cmd"

func main() {
	cmd.Execute()
}
