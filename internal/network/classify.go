package network

import "strings"

// Classify maps a raw platform connectivity state to a Quality snapshot.
// It is a pure function: strength derives from technology-specific thresholds
// and speed stays unknown until a probe sample measures it.
func Classify(raw RawState) Quality {
	quality := Quality{
		Type:              normalizeType(raw.Type),
		Connected:         raw.Connected,
		InternetReachable: raw.InternetReachable,
		Strength:          StrengthUnknown,
		Speed:             SpeedUnknown,
	}

	switch quality.Type {
	case TypeWifi:
		quality.Strength = wifiStrength(raw.WifiSignalPercent)
	case TypeCellular:
		quality.Strength = cellularStrength(raw.CellularGeneration)
	}

	return quality
}

func normalizeType(t ConnectionType) ConnectionType {
	switch t {
	case TypeWifi, TypeCellular, TypeEthernet, TypeNone:
		return t
	default:
		return TypeUnknown
	}
}

func wifiStrength(signalPercent int) Strength {
	switch {
	case signalPercent >= 80:
		return StrengthExcellent
	case signalPercent >= 60:
		return StrengthGood
	case signalPercent >= 40:
		return StrengthFair
	case signalPercent >= 20:
		return StrengthPoor
	default:
		return StrengthUnknown
	}
}

func cellularStrength(generation string) Strength {
	switch strings.ToLower(strings.TrimSpace(generation)) {
	case "5g":
		return StrengthExcellent
	case "4g", "lte":
		return StrengthGood
	case "3g":
		return StrengthFair
	case "2g":
		return StrengthPoor
	default:
		return StrengthUnknown
	}
}

// speedForLatency buckets a measured round-trip into a Speed classification.
func speedForLatency(latencyMs int64) Speed {
	switch {
	case latencyMs <= 0:
		return SpeedUnknown
	case latencyMs < 100:
		return SpeedFast
	case latencyMs <= 300:
		return SpeedMedium
	default:
		return SpeedSlow
	}
}
