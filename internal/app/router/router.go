package router

import (
	"github.com/gin-gonic/gin"

	simhandler "stock_simulator/internal/feature/simulation/transport/handler"
	"stock_simulator/internal/platform/http/handler"
)

func NewRouter(health *handler.HealthHandler, sim *simhandler.SimulationHandler) *gin.Engine {
	r := gin.Default()

	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)

	// 銘柄の参照と追加・削除
	instruments := r.Group("/instruments")
	{
		instruments.GET("", sim.ListInstruments)
		instruments.POST("", sim.CreateInstrument)
		instruments.GET("/:id", sim.GetInstrument)
		instruments.DELETE("/:id", sim.DeleteInstrument)
		instruments.GET("/:id/history", sim.GetPriceHistory)
	}

	// シミュレーションの操作
	simulation := r.Group("/simulation")
	{
		simulation.GET("", sim.GetState)
		simulation.POST("/start", sim.Start)
		simulation.POST("/stop", sim.Stop)
	}

	return r
}
