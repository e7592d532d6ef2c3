// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler は /healthz エンドポイントを処理します。
type HealthHandler struct {
	simulationState func() string
}

// NewHealthHandler はHealthHandlerを生成します。
// simulationState がnilの場合、レスポンスにシミュレーション状態を含めません。
func NewHealthHandler(simulationState func() string) *HealthHandler {
	return &HealthHandler{simulationState: simulationState}
}

// Health はHTTPメソッドに応じて適切にレスポンスし、キャッシュを防止します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		body := gin.H{"status": "ok"}
		if h.simulationState != nil {
			body["simulation"] = h.simulationState()
		}
		c.JSON(http.StatusOK, body)
	}
}
