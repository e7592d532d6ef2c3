// Package handler はsimulationフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/transport/http/dto"
	"stock_simulator/internal/feature/simulation/usecase"
)

// InstrumentReader は追跡中の銘柄を読み取るインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type InstrumentReader interface {
	List() []entity.Instrument
	Get(id string) (entity.Instrument, error)
}

// HistoryFetcher は永続化された価格履歴を取得するインターフェースです。
type HistoryFetcher interface {
	FetchPriceHistoryN(ctx context.Context, instrumentID string, limit int) []entity.PricePoint
}

// InstrumentManager はシミュレーション対象の銘柄を追加・削除するインターフェースです。
type InstrumentManager interface {
	Track(ctx context.Context, inst entity.Instrument) (entity.Instrument, error)
	Untrack(ctx context.Context, id string) error
}

// SimulationController はシミュレーションの開始・停止を行うインターフェースです。
type SimulationController interface {
	Start(ctx context.Context)
	Stop()
	State() usecase.State
}

// SimulationHandler は銘柄とシミュレーション操作のHTTPリクエストを処理します。
type SimulationHandler struct {
	// baseCtx はStartに渡すコンテキストです。リクエストのコンテキストはレスポンス後に
	// キャンセルされるため使いません。
	baseCtx     context.Context
	instruments InstrumentReader
	manager     InstrumentManager
	history     HistoryFetcher
	sim         SimulationController
}

// NewSimulationHandler はSimulationHandlerの新しいインスタンスを生成します。
func NewSimulationHandler(
	baseCtx context.Context,
	instruments InstrumentReader,
	manager InstrumentManager,
	history HistoryFetcher,
	sim SimulationController,
) *SimulationHandler {
	return &SimulationHandler{baseCtx: baseCtx, instruments: instruments, manager: manager, history: history, sim: sim}
}

// ListInstruments は追跡中の全銘柄を返します。
//
// エンドポイント例:
// GET /instruments
func (h *SimulationHandler) ListInstruments(c *gin.Context) {
	list := h.instruments.List()
	out := make([]dto.InstrumentResponse, 0, len(list))
	for _, inst := range list {
		out = append(out, toInstrumentResponse(inst, false))
	}
	c.JSON(http.StatusOK, out)
}

// GetInstrument は銘柄の現在価格とローソク足を返します。
//
// エンドポイント例:
// GET /instruments/:id
func (h *SimulationHandler) GetInstrument(c *gin.Context) {
	inst, err := h.instruments.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInstrumentResponse(inst, true))
}

// CreateInstrument は銘柄をシミュレーション対象に追加します。
// 実行中の場合は次のティックから価格が動きます。
//
// エンドポイント例:
// POST /instruments {"symbol":"AAPL","name":"Apple","price":190.5}
func (h *SimulationHandler) CreateInstrument(c *gin.Context) {
	var req dto.CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("create instrument validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	inst, err := h.manager.Track(c.Request.Context(), entity.Instrument{
		ID:           req.ID,
		Symbol:       req.Symbol,
		Name:         req.Name,
		CurrentPrice: req.Price,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInstrumentResponse(inst, false))
}

// DeleteInstrument は銘柄をシミュレーション対象から外します。
//
// エンドポイント例:
// DELETE /instruments/:id
func (h *SimulationHandler) DeleteInstrument(c *gin.Context) {
	if err := h.manager.Untrack(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPriceHistory は永続化された価格履歴を古い順に返します。
//
// エンドポイント例:
// GET /instruments/:id/history?limit=100
func (h *SimulationHandler) GetPriceHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.instruments.Get(id); err != nil {
		writeError(c, err)
		return
	}

	// 不正な値は0になり、usecaseでデフォルト値に変換される
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(usecase.DefaultHistoryLimit)))

	points := h.history.FetchPriceHistoryN(c.Request.Context(), id, limit)
	out := make([]dto.PricePointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, dto.PricePointResponse{
			Price:      p.Price,
			RecordedAt: p.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GetState はシミュレーションの状態を返します。
func (h *SimulationHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.stateResponse())
}

// Start はシミュレーションを開始します。実行中の場合は何もしません。
func (h *SimulationHandler) Start(c *gin.Context) {
	h.sim.Start(h.baseCtx)
	c.JSON(http.StatusOK, h.stateResponse())
}

// Stop はシミュレーションを停止します。停止中の場合は何もしません。
func (h *SimulationHandler) Stop(c *gin.Context) {
	h.sim.Stop()
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *SimulationHandler) stateResponse() dto.SimulationStateResponse {
	return dto.SimulationStateResponse{
		State:       string(h.sim.State()),
		Instruments: len(h.instruments.List()),
	}
}

func toInstrumentResponse(inst entity.Instrument, withCandles bool) dto.InstrumentResponse {
	out := dto.InstrumentResponse{
		ID:           inst.ID,
		Symbol:       inst.Symbol,
		Name:         inst.Name,
		CurrentPrice: inst.CurrentPrice,
	}
	if withCandles {
		out.Candles = make([]dto.CandleResponse, 0, len(inst.PriceHistory))
		for _, x := range inst.PriceHistory {
			out.Candles = append(out.Candles, dto.CandleResponse{
				Time:  x.Time.UTC().Format(time.RFC3339),
				Open:  x.Open,
				High:  x.High,
				Low:   x.Low,
				Close: x.Close,
			})
		}
	}
	return out
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
