package main

import "crewlink/cmd"

func main() {
	cmd.Execute()
}
