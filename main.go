package main

import "github.com/facetrail/facetrail/cmd"

func main() {
	cmd.Execute()
}
