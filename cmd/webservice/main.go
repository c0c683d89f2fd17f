package main

import (
	stlog "log"
	"time"

	"parts-shop/checkout/confirm"
	"parts-shop/checkout/gateway"
	"parts-shop/service"
	"parts-shop/utils"
	"parts-shop/web/controllers"
	"parts-shop/web/db"
	"parts-shop/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		stlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gw := gateway.NewClient(
		utils.Getenv("GATEWAY_URL", "https://api.omise.co"),
		utils.Getenv("GATEWAY_SECRET_KEY", ""),
		utils.Getenv("GATEWAY_PUBLIC_KEY", ""),
	)
	adapter := gateway.NewAdapter(gw, logger)

	mgr := confirm.NewManager(controllers.OrderStore{}, adapter, logger)
	eventURL := utils.Getenv("EVENT_URL", "http://localhost:8084")
	controllers.Setup(mgr, gw, eventURL, logger)

	// sweep finished confirmation sessions every 10 minutes
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			mgr.Sweep(time.Hour)
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cache-Control"},
		AllowCredentials: false,
	}))

	globalLimiter := middleware.NewRateLimiter(60) // 60 requests/min/IP
	globalLimiter.StartCleanup(10 * time.Minute)
	limited := globalLimiter.Middleware()

	r.GET("/metrics", middleware.PrometheusHandler())

	r.POST("/checkout/confirm", limited, middleware.RequireAuth, controllers.OpenConfirmation)
	r.GET("/checkout/confirm/:id", limited, middleware.RequireAuth, controllers.ConfirmationStatus)
	r.POST("/checkout/confirm/:id/submit", limited, middleware.RequireAuth, controllers.SubmitConfirmation)
	r.POST("/checkout/confirm/:id/cancel", limited, middleware.RequireAuth, controllers.CancelConfirmation)

	// the QR modal polls this while waiting for the scan to settle
	r.GET("/charge-status", middleware.RequireAuth, controllers.ChargeStatus)
	r.GET("/checkout/qr/:charge_id", middleware.RequireAuth, controllers.ScanQR)
	r.POST("/checkout/scan/:charge_id/close", middleware.RequireAuth, controllers.CloseScan)

	r.GET("/orders", limited, middleware.AdminAuth, controllers.ListOrders)
	r.GET("/orders/:id", limited, middleware.AdminAuth, controllers.GetOrder)

	r.GET("/admin/notify", middleware.AdminAuth, controllers.AdminNotify)

	port := utils.Getenv("GIN_PORT", "8080")
	if err := service.Run(":"+port, r, logger); err != nil {
		logger.Fatal("web service exited", zap.Error(err))
	}
}
