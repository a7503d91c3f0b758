/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
// Command repohub serves the repo container and repo file endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/tomoncle/repohub"
	"github.com/tomoncle/repohub/api"
	"github.com/tomoncle/repohub/config"
	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/mutation"
	"github.com/tomoncle/repohub/storage"
	"github.com/tomoncle/repohub/utils"
)

func main() {
	configPath := flag.String("config", utils.EnvDefaultString("REPOHUB_CONFIG", ""), "path to the YAML config file")
	addr := flag.String("addr", "", "HTTP listen address, overrides the config")
	migrate := flag.Bool("migrate", true, "run migrations on startup")
	flag.Parse()

	logger := utils.NewLogger(utils.LoggerAPI)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)
	cfg.Database.DataMigrateConfig.EnableMigrateOnStartup = cfg.Database.DataMigrateConfig.EnableMigrateOnStartup && *migrate

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx := context.Background()

	if _, err := database.InitDB(&cfg.Database); err != nil {
		return err
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.WithError(err).Warn("failed to close database")
		}
	}()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	handler := &api.Handler{
		Containers: repohub.NewContainerService(nil, repohub.Options{
			PaginationMaxLength: cfg.Limits.PaginationMaxLength,
			Mutation:            mutation.Options{MaxCreate: cfg.Limits.MaxContainerCreate},
		}),
		Files: repohub.NewFileService(nil, repohub.Options{
			PaginationMaxLength: cfg.Limits.PaginationMaxLength,
			Mutation: mutation.Options{
				MaxCreate:  cfg.Limits.MaxFileCreate,
				Blobs:      blobs,
				BlobPrefix: cfg.Storage.Prefix,
			},
		}),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}

	gate := api.Gate(api.AllowAll)
	if cfg.Auth.JWTSecret != "" {
		gate = api.BearerGate([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	} else {
		logger.Warn("auth.jwt_secret is empty, requests are not authenticated")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler, gate),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errs:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
