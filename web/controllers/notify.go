package controllers

import (
	"net/http"

	"parts-shop/notify/relay"
	"parts-shop/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// streamClient deliberately has no timeout: the notification stream lives
// as long as the downstream consumer stays connected.
var streamClient = &http.Client{}

// AdminNotify bridges the event service's stream to the administrative
// client, forwarding the bearer token taken from the auth cookie.
func AdminNotify(c *gin.Context) {
	req, err := http.NewRequestWithContext(c.Request.Context(), "GET", eventURL+"/notify", nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create upstream request"})
		return
	}
	req.Header.Set("Authorization", "Bearer "+middleware.BearerToken(c))
	req.Header.Set("Accept", "text/event-stream")

	resp, err := streamClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Notification stream unavailable"})
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.JSON(http.StatusBadGateway, gin.H{"error": "Notification stream responded with " + resp.Status})
		return
	}

	relay.SetStreamHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	r := relay.New(relay.NewReaderSource(resp.Body), logger)
	if err := r.Run(c.Request.Context(), c.Writer); err != nil {
		logger.Warn("notification stream ended with error", zap.Error(err))
	}
}
