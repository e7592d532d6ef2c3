// Package usecase は価格シミュレーションエンジン（価格生成、ローソク足の集約、定期更新スケジューラ）を実装します。
package usecase

import (
	"fmt"
	"math"
	"math/rand/v2"

	"stock_simulator/internal/feature/simulation/domain"
)

const (
	// LowVolatilityBound は値動きの小さい銘柄の1回あたりの最大変動率（0.5%）です。
	LowVolatilityBound = 0.005
	// DefaultVolatilityBound はそれ以外の銘柄の1回あたりの最大変動率（2%）です。
	DefaultVolatilityBound = 0.02
)

// DefaultLowVolatilitySymbols は設定で上書きされない場合に低ボラティリティとして扱うシンボルです。
var DefaultLowVolatilitySymbols = []string{"AMZN", "GOOGL", "JPM"}

// RandomSource は[0, 1)の一様乱数を返します。math/rand/v2の*rand.Randが満たします。
type RandomSource interface {
	Float64() float64
}

// globalSource はパッケージレベルの乱数生成器に委譲します。並行利用しても安全です。
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// NewSeededSource は再現可能なRandomSourceを返します。
// 並行利用は安全ではありませんが、スケジューラは単一のゴルーチンからのみ呼び出します。
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GeneratorOption はPriceGeneratorの設定を変更します。
type GeneratorOption func(*PriceGenerator)

// WithLowVolatilitySymbols は低ボラティリティのシンボルを置き換えます。空の場合はデフォルトのままです。
func WithLowVolatilitySymbols(symbols ...string) GeneratorOption {
	return func(g *PriceGenerator) {
		if len(symbols) == 0 {
			return
		}
		g.lowVolatility = toSet(symbols)
	}
}

// PriceGenerator は現在価格とシンボルから次のシミュレーション価格を求めます。
type PriceGenerator struct {
	rnd           RandomSource
	lowVolatility map[string]struct{}
}

// NewPriceGenerator はrndから乱数を引くPriceGeneratorを生成します。
// rndがnilの場合はmath/rand/v2のグローバルな生成器を使います。
func NewPriceGenerator(rnd RandomSource, opts ...GeneratorOption) *PriceGenerator {
	if rnd == nil {
		rnd = globalSource{}
	}
	g := &PriceGenerator{
		rnd:           rnd,
		lowVolatility: toSet(DefaultLowVolatilitySymbols),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bound はシンボルの1回あたりの最大変動率を返します。
func (g *PriceGenerator) Bound(symbol string) float64 {
	if _, ok := g.lowVolatility[symbol]; ok {
		return LowVolatilityBound
	}
	return DefaultVolatilityBound
}

// NextPrice はcurrentPrice*(1+change)を返します。changeはシンボルの区分に応じた[-bound, +bound]から一様に選ばれます。
func (g *PriceGenerator) NextPrice(currentPrice float64, symbol string) (float64, error) {
	if !(currentPrice > 0) || math.IsInf(currentPrice, 1) {
		return 0, fmt.Errorf("%w: current price %v of %q must be positive and finite",
			domain.ErrInvalidState, currentPrice, symbol)
	}

	bound := g.Bound(symbol)
	change := (g.rnd.Float64() - 0.5) * 2 * bound
	// 乱数ソースが範囲外の値を返しても上下限を超えないようにする
	change = math.Max(-bound, math.Min(bound, change))

	return currentPrice * (1 + change), nil
}

func toSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}
