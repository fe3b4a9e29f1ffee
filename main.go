package main

import (
	"os"

	"github.com/htol/shelf/app"
)

func main() {
	os.Exit(app.CLI(os.Args[1:]))
}
