package dto

// CreateInstrumentRequest は銘柄追加のリクエストDTOです。
// idを省略した場合はシンボルから導出されます。
type CreateInstrumentRequest struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol" binding:"required"`
	Name   string  `json:"name"`
	Price  float64 `json:"price" binding:"required,gt=0"`
}

// CandleResponse はローソク足のレスポンスDTOです。
type CandleResponse struct {
	Time  string  `json:"time"`  // RFC3339形式のUTC時刻
	Open  float64 `json:"open"`  // 始値
	High  float64 `json:"high"`  // 高値
	Low   float64 `json:"low"`   // 安値
	Close float64 `json:"close"` // 終値
}

// InstrumentResponse は銘柄のレスポンスDTOです。
type InstrumentResponse struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	CurrentPrice float64          `json:"current_price"`
	Candles      []CandleResponse `json:"candles,omitempty"`
}

// PricePointResponse は永続化された価格観測のレスポンスDTOです。
type PricePointResponse struct {
	Price      float64 `json:"price"`
	RecordedAt string  `json:"recorded_at"`
}

// SimulationStateResponse はシミュレーション状態のレスポンスDTOです。
type SimulationStateResponse struct {
	State       string `json:"state"`
	Instruments int    `json:"instruments"`
}

// ErrorResponse はエラーレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
