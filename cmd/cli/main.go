package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/properbooky/internal/buildinfo"
	"github.com/dmitrijs2005/properbooky/internal/client/cli"
	"github.com/dmitrijs2005/properbooky/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg, os.Stdout)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
