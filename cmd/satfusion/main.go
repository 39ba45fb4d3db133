package main

import "satfusion-desktop/internal/cli"

func main() {
	cli.Execute()
}
