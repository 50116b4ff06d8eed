//go:build tinygo

package main

import (
	"multiprobe/app"
	"multiprobe/hal"
)

func main() {
	app.Run(hal.New())
}
