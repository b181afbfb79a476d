package playbook

import (
	"regexp"
	"strings"

	"perception/internal/types"
)

var fxPairPattern = regexp.MustCompile(`^[A-Z]{6}$`)

var knownIndexKeys = []string{"GSPC", "NDX", "DJI", "GDAXI", "FTSE", "STOXX", "HSI", "NIKKEI", "IBEX"}

func matchGold(asset types.Asset) (bool, string) {
	id := strings.ToUpper(asset.ID)
	symbol := strings.ToUpper(asset.Symbol)
	name := strings.ToUpper(asset.Name)
	switch {
	case id == "GOLD":
		return true, "gold id"
	case strings.HasPrefix(symbol, "GC"):
		return true, "gold via GC symbol"
	case strings.Contains(symbol, "XAU"):
		return true, "gold via XAU symbol"
	case symbol == "GOLD":
		return true, "gold symbol"
	case strings.Contains(name, "GOLD"):
		return true, "gold name"
	}
	return false, "no gold match"
}

func matchIndex(asset types.Asset) (bool, string) {
	symbol := strings.ToUpper(asset.Symbol)
	name := strings.ToUpper(asset.Name)
	if strings.HasPrefix(symbol, "^") {
		return true, "index caret symbol"
	}
	for _, key := range knownIndexKeys {
		if strings.Contains(symbol, key) {
			return true, "index keyword symbol"
		}
	}
	if strings.Contains(name, "INDEX") {
		return true, "index name"
	}
	return false, "no index match"
}

func matchCrypto(asset types.Asset) (bool, string) {
	symbol := strings.ToUpper(asset.Symbol)
	if strings.Contains(symbol, "=X") {
		return false, "yahoo fx, skip crypto"
	}
	switch {
	case strings.Contains(symbol, "-USD"):
		return true, "crypto hyphen USD"
	case strings.HasSuffix(symbol, "USDT"), strings.HasSuffix(symbol, "USD"):
		return true, "crypto USD/USDT tail"
	}
	return false, "no crypto match"
}

func matchFx(asset types.Asset) (bool, string) {
	symbol := strings.ToUpper(asset.Symbol)
	if strings.HasSuffix(symbol, "=X") {
		return true, "fx yahoo =X"
	}
	if fxPairPattern.MatchString(symbol) && strings.Contains(symbol, "USD") {
		return true, "fx 6-letter with USD"
	}
	return false, "no fx match"
}
