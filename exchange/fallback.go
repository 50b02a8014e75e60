package exchange

// Substitute values served when the upstream call fails or times out.
// They mirror the shapes of the corresponding API responses so downstream
// consumers keep working against degraded data.

func fallbackServerTime(_ ...any) any {
	return map[string]any{"time": int64(1000000000)}
}

func fallbackServerStatus(_ ...any) any {
	return map[string]any{"status": "active"}
}

func fallbackOrderbook(_ ...any) any {
	return map[string]any{
		"asks": []any{},
		"bids": []any{},
	}
}

func fallbackFee(_ ...any) any {
	return map[string]any{
		"maker": "0.001",
		"taker": "0.001",
	}
}

func fallbackTicker(args ...any) any {
	market := "BTC_USDT"
	if len(args) > 0 {
		if m, ok := args[0].(string); ok && m != "" {
			market = m
		}
	}
	return map[string]any{
		"market": market,
		"last":   "50000",
		"high":   "51000",
		"low":    "49000",
		"volume": "100",
		"bid":    "49900",
		"ask":    "50100",
	}
}

func fallbackEmptyList(_ ...any) any {
	return []any{}
}

func fallbackEmptyObject(_ ...any) any {
	return map[string]any{}
}
