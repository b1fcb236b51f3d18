package main

import "github.com/animeqa/animeqa/cmd"

func main() {
	cmd.Execute()
}
