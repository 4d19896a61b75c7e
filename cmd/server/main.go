package main // Entry point package

import (
	"context"
	"log"

	"github.com/vaskular/vaskular-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
