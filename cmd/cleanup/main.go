package main

import (
	"flag"
	"os"

	"github.com/deusflow/feeddigest/internal/archive"
	"github.com/deusflow/feeddigest/internal/logger"
)

func main() {
	root := flag.String("root", ".", "workspace directory holding the run artifacts")
	flag.Parse()

	logger.Init()

	res, err := archive.Run(archive.Options{Root: *root})
	if err != nil {
		logger.Error("Cleanup failed", "err", err)
		os.Exit(1)
	}
	logger.Info("Archive created", "path", res.ZipPath, "published", res.OutputDir)
}
