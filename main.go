package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"finassist/cache"
	"finassist/config"
	"finassist/db"
	fhttp "finassist/http"
	"finassist/logger"
	"finassist/market/providers"
	"finassist/search"
	"finassist/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("Failed to load config: %v", err)
		}
		// 没有配置文件时用默认值起服务，便于本地开发
		cfg = config.Default()
	}

	zlog, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := db.InitDB(cfg.Database.Path); err != nil {
		zlog.Fatal("database init failed", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer db.CloseDB()

	cacheSvc := cache.New(cfg.Redis.URL, cfg.Cache.MemoryMaxEntries, zlog)
	defer cacheSvc.Close()
	zlog.Info("cache ready", zap.String("backend", cacheSvc.Backend()))

	manager := providers.NewManager(cfg.DataSource.Default, zlog,
		providers.NewEastmoneyProvider(cacheSvc, zlog),
		providers.NewSinaProvider(cacheSvc, zlog),
		providers.NewTushareProvider(cfg.Tushare.Token, cacheSvc, zlog),
		providers.NewTencentProvider(cacheSvc, zlog),
	)

	server := fhttp.NewServer(fhttp.Deps{
		Config:  cfg,
		Manager: manager,
		Store:   storage.New(manager, cacheSvc, zlog),
		Search:  search.New(manager, cacheSvc, zlog),
		Cache:   cacheSvc,
		Logger:  zlog,
	})

	// 配置热更新，目前只有默认数据源可在线切换
	if watcher, err := config.NewWatcher(*configPath, zlog); err == nil {
		watcher.Start(func(next *config.Config) {
			if next.DataSource.Default != manager.DefaultSource() {
				if err := manager.SetDefaultSource(next.DataSource.Default); err != nil {
					zlog.Warn("reload default source failed",
						zap.String("source", next.DataSource.Default), zap.Error(err))
				}
			}
		})
		defer watcher.Stop()
	} else {
		zlog.Warn("config watcher unavailable", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	if err := server.Stop(); err != nil {
		zlog.Warn("server forced to shutdown", zap.Error(err))
	}
}
