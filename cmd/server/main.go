package main

import (
	"github.com/Nacho7823/voiceAsisstant/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
