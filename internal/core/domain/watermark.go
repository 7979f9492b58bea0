package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Watermark is a monotonic register: writes merge with max, so a stale or
// partial recomputation can never lower a value that was already observed.
type Watermark struct {
	value decimal.Decimal
}

func NewWatermark(v decimal.Decimal) Watermark {
	w := Watermark{}
	w.Merge(v)
	return w
}

// RestoreWatermark rebuilds a watermark from persisted state.
func RestoreWatermark(v decimal.Decimal) Watermark {
	return Watermark{value: v}
}

func (w Watermark) Value() decimal.Decimal {
	return w.value
}

// Merge raises the stored value to v if v is greater and reports whether the
// value changed.
func (w *Watermark) Merge(v decimal.Decimal) bool {
	if v.GreaterThan(w.value) {
		w.value = v
		return true
	}
	return false
}

func (w Watermark) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.value)
}

type CountWatermark struct {
	value uint64
}

func RestoreCountWatermark(v uint64) CountWatermark {
	return CountWatermark{value: v}
}

func (w CountWatermark) Value() uint64 {
	return w.value
}

func (w *CountWatermark) Merge(v uint64) bool {
	if v > w.value {
		w.value = v
		return true
	}
	return false
}

func (w CountWatermark) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.value)
}
