package main

import (
	"os"

	"github.com/okian/wearsense/internal/loadgen"
)

func main() {
	if err := loadgen.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
