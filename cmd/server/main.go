package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"rotctrack/internal/api"
	"rotctrack/internal/auth"
	"rotctrack/internal/capture"
	"rotctrack/internal/config"
	"rotctrack/internal/files"
	"rotctrack/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	blobs, err := files.NewBlobStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("could not open data dir", zap.Error(err))
	}

	st := store.New(blobs, logger)
	authn := auth.New(cfg.AdminPassword, cfg.AdminPasswordHash, []byte(cfg.JWTSecret))

	h := &api.Handler{
		Store:       st,
		Auth:        authn,
		QRScanner:   capture.NewQRScanner(st, logger),
		FaceScanner: capture.NewFaceScanner(st, logger, cfg.FaceWarmup),
		QRImageSize: cfg.QRImageSize,
		Log:         logger,
	}

	logger.Info("server running",
		zap.String("addr", cfg.Addr),
		zap.String("data_dir", cfg.DataDir))
	if err := http.ListenAndServe(cfg.Addr, api.NewRouter(h)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
