package main

import (
	"github.com/geonum/godcr/cmd"
)

func main() {
	cmd.Execute()
}
