package main

import (
	"os"

	"newsgrid.app/grid/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
