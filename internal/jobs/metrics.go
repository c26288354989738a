package jobs

import (
	"encoding/json"
	"strconv"

	"stratlab-sync/internal/client"
)

// Upstream result documents are not schema-stable: the same quantity shows
// up under different spellings depending on which service version produced
// it. The alias lists below are a deliberate, finite interoperability shim —
// first numeric match wins, missing metrics fall back to 0. Do not grow this
// into a reflective mechanism.
var metricAliases = map[string][]string{
	"win_rate":     {"winRate", "win_rate", "winrate", "winRatePct", "win_rate_pct"},
	"total_return": {"totalReturn", "total_return", "totalReturnPct", "total_return_pct", "return"},
	"max_drawdown": {"maxDrawdown", "max_drawdown", "maxDD", "max_dd", "drawdown"},
	"sharpe_ratio": {"sharpeRatio", "sharpe_ratio", "sharpe"},
}

// ExtractMetrics projects the four summary metrics out of a results
// document. Pure and deterministic: each metric is looked up in the metrics
// object then the summary object through its alias list, taking the first
// numeric value found, else 0. A missing metric is best-effort policy here,
// not an error.
func ExtractMetrics(doc *client.ResultsDoc) Metrics {
	if doc == nil {
		return Metrics{}
	}
	return Metrics{
		WinRate:     extractOne(doc, metricAliases["win_rate"]),
		TotalReturn: extractOne(doc, metricAliases["total_return"]),
		MaxDrawdown: extractOne(doc, metricAliases["max_drawdown"]),
		SharpeRatio: extractOne(doc, metricAliases["sharpe_ratio"]),
	}
}

func extractOne(doc *client.ResultsDoc, aliases []string) float64 {
	for _, source := range []map[string]json.RawMessage{doc.Metrics, doc.Summary} {
		if source == nil {
			continue
		}
		for _, alias := range aliases {
			if raw, ok := source[alias]; ok {
				if v, ok := asNumber(raw); ok {
					return v
				}
			}
		}
	}
	return 0
}

// asNumber accepts plain JSON numbers and numeric strings; anything else is
// treated as absent.
func asNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
