package strategy

import (
	"github.com/markcheno/go-talib"

	"tradebot/internal/models"
)

// indicators.go - расчет технических индикаторов по свечам
//
// Индикаторы считаются в float64: это сигнальная математика, а не
// денежная. Все денежные величины (цены ордеров, количества, балансы)
// остаются в decimal.

// IndicatorFrame содержит свечи, разложенные по колонкам для talib
type IndicatorFrame struct {
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewIndicatorFrame раскладывает свечи по колонкам
func NewIndicatorFrame(candles []models.Candle) *IndicatorFrame {
	n := len(candles)
	f := &IndicatorFrame{
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, c := range candles {
		f.High[i], _ = c.High.Float64()
		f.Low[i], _ = c.Low.Float64()
		f.Close[i], _ = c.Close.Float64()
		f.Volume[i], _ = c.Volume.Float64()
	}
	return f
}

// Len возвращает количество свечей во фрейме
func (f *IndicatorFrame) Len() int {
	return len(f.Close)
}

// RSI возвращает серию RSI
func (f *IndicatorFrame) RSI(period int) []float64 {
	if f.Len() <= period {
		return nil
	}
	return talib.Rsi(f.Close, period)
}

// ATR возвращает серию Average True Range
func (f *IndicatorFrame) ATR(period int) []float64 {
	if f.Len() <= period {
		return nil
	}
	return talib.Atr(f.High, f.Low, f.Close, period)
}

// EMA возвращает серию экспоненциальной скользящей средней
func (f *IndicatorFrame) EMA(period int) []float64 {
	if f.Len() < period {
		return nil
	}
	return talib.Ema(f.Close, period)
}

// VolumeSMA возвращает серию скользящей средней объема
func (f *IndicatorFrame) VolumeSMA(period int) []float64 {
	if f.Len() < period {
		return nil
	}
	return talib.Sma(f.Volume, period)
}

// Stochastic возвращает серии %K и %D стохастического осциллятора
func (f *IndicatorFrame) Stochastic(kPeriod, smooth, dPeriod int) (k, d []float64) {
	if f.Len() < kPeriod+smooth+dPeriod {
		return nil, nil
	}
	return talib.Stoch(f.High, f.Low, f.Close,
		kPeriod, smooth, talib.SMA, dPeriod, talib.SMA)
}

// BollingerBands возвращает верхнюю, среднюю и нижнюю полосы Боллинджера
func (f *IndicatorFrame) BollingerBands(period int, stdDev float64) (upper, middle, lower []float64) {
	if f.Len() < period {
		return nil, nil, nil
	}
	return talib.BBands(f.Close, period, stdDev, stdDev, talib.SMA)
}

// Supertrend возвращает серию направлений тренда: 1 вверх, -1 вниз.
//
// В talib этого индикатора нет, считаем по классической схеме:
// полосы hl2 +/- multiplier*ATR с переносом предыдущих значений,
// направление меняется при пробое ценой закрытия противоположной полосы.
func (f *IndicatorFrame) Supertrend(atrPeriod int, multiplier float64) []int {
	n := f.Len()
	if n <= atrPeriod {
		return nil
	}

	atr := talib.Atr(f.High, f.Low, f.Close, atrPeriod)

	upper := make([]float64, n)
	lower := make([]float64, n)
	dir := make([]int, n)

	for i := 0; i < n; i++ {
		hl2 := (f.High[i] + f.Low[i]) / 2
		basicUpper := hl2 + multiplier*atr[i]
		basicLower := hl2 - multiplier*atr[i]

		if i == 0 {
			upper[i] = basicUpper
			lower[i] = basicLower
			dir[i] = 1
			continue
		}

		// Верхняя полоса двигается только вниз, пока цена под ней
		if basicUpper < upper[i-1] || f.Close[i-1] > upper[i-1] {
			upper[i] = basicUpper
		} else {
			upper[i] = upper[i-1]
		}

		// Нижняя полоса двигается только вверх, пока цена над ней
		if basicLower > lower[i-1] || f.Close[i-1] < lower[i-1] {
			lower[i] = basicLower
		} else {
			lower[i] = lower[i-1]
		}

		if dir[i-1] == 1 {
			if f.Close[i] < lower[i] {
				dir[i] = -1
			} else {
				dir[i] = 1
			}
		} else {
			if f.Close[i] > upper[i] {
				dir[i] = 1
			} else {
				dir[i] = -1
			}
		}
	}

	return dir
}

// last возвращает последний элемент серии или 0
func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// prev возвращает предпоследний элемент серии или 0
func prev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-2]
}
