package main

import (
	"github.com/eleven-am/speech-delivery/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
