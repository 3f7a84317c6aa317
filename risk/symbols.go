// Package risk 仓位计算与账户级风控
// 所有路径遵循 fail-closed：输入缺失、符号未知、保证金不足时一律拒绝，绝不默认放行。
package risk

import (
	"strings"
)

// AssetClass 资产类别
type AssetClass string

const (
	AssetForex  AssetClass = "forex"
	AssetCrypto AssetClass = "crypto"
	AssetMetal  AssetClass = "metal"
	AssetIndex  AssetClass = "index"
)

// contractSizes 合约规格表（每手对应的标的数量）
// 只收录经过核对的符号。未知符号必须拒绝，严禁默认为1：
// 历史上某些币种因为未核对的默认值出现过十万倍级别的仓位错误。
var contractSizes = map[string]float64{
	// 加密货币
	"BTCUSD": 2,
	"ETHUSD": 20,
	"LTCUSD": 100,
	"XRPUSD": 10000,
	"SOLUSD": 50,

	// 贵金属
	"XAUUSD": 100,
	"XAGUSD": 5000,

	// 指数（每手每点价值折算后的标的数量）
	"US500":  10,
	"NAS100": 10,
	"US30":   1,
	"GER40":  10,
	"UK100":  10,
	"JPN225": 100,
}

// forexContractSize 外汇标准合约（每手基础货币数量）
const forexContractSize = 100000

// indexBuckets 无 ISO 货币符号的敞口归并桶
var indexBuckets = map[string]string{
	"US500":  "US-IDX",
	"NAS100": "US-IDX",
	"US30":   "US-IDX",
	"GER40":  "EU-IDX",
	"UK100":  "UK-IDX",
	"JPN225": "JP-IDX",
	"USOIL":  "OIL",
	"UKOIL":  "OIL",
}

// cryptoBases 已知加密货币基础代码
var cryptoBases = map[string]bool{
	"BTC": true, "ETH": true, "LTC": true, "XRP": true, "SOL": true,
	"ADA": true, "DOT": true, "DOGE": true,
}

// metalBases 贵金属基础代码
var metalBases = map[string]bool{
	"XAU": true, "XAG": true, "XPT": true, "XPD": true,
}

// isoCurrencies 主要法币代码
var isoCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"AUD": true, "NZD": true, "CAD": true, "SGD": true, "SEK": true,
	"NOK": true, "ZAR": true, "MXN": true, "HKD": true,
}

// Classify 判断符号的资产类别
func Classify(symbol string) AssetClass {
	symbol = strings.ToUpper(symbol)

	if _, ok := indexBuckets[symbol]; ok {
		return AssetIndex
	}

	if len(symbol) >= 6 {
		base := symbol[:3]
		switch {
		case metalBases[base]:
			return AssetMetal
		case cryptoBases[base]:
			return AssetCrypto
		case isoCurrencies[base] && isoCurrencies[symbol[3:6]]:
			return AssetForex
		}
	}

	// 未识别符号按加密货币处理：走合约表路径，表中查不到会 fail closed
	return AssetCrypto
}

// ContractSize 查询合约规格
// 第二个返回值为 false 表示符号未核对，调用方必须拒绝该交易。
func ContractSize(symbol string) (float64, bool) {
	size, ok := contractSizes[strings.ToUpper(symbol)]
	return size, ok
}

// PipSize 外汇符号的点值大小（JPY 计价对为 0.01）
func PipSize(symbol string) float64 {
	if IsJPYQuote(symbol) {
		return 0.01
	}
	return 0.0001
}

// IsJPYQuote 是否 JPY 计价对
func IsJPYQuote(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	return len(symbol) >= 6 && symbol[3:6] == "JPY"
}

// BaseQuote 拆分符号的基础/计价货币（或归并桶）
// 指数与大宗商品没有字面 ISO 货币，归并到区域桶对 USD。
func BaseQuote(symbol string) (string, string) {
	symbol = strings.ToUpper(symbol)

	if bucket, ok := indexBuckets[symbol]; ok {
		return bucket, "USD"
	}

	if len(symbol) >= 6 {
		return symbol[:3], symbol[3:6]
	}

	return symbol, "USD"
}
