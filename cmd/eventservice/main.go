package main

import (
	stlog "log"

	"parts-shop/notify/hub"
	"parts-shop/service"
	"parts-shop/utils"
	"parts-shop/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	utils.LoadEnv()
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		stlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	h := hub.New(logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware())

	r.GET("/metrics", middleware.PrometheusHandler())

	r.POST("/events", middleware.EventAuth, h.HandlePublish)
	r.GET("/notify", middleware.RequireAuth, h.HandleStream)

	port := utils.Getenv("EVENT_PORT", "8084")
	if err := service.Run(":"+port, r, logger); err != nil {
		logger.Fatal("event service exited", zap.Error(err))
	}
}
