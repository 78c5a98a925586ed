package meter

import (
	"bytes"
	"encoding/json"
)

// Number is the set of value types a Metric can carry.
type Number interface {
	~float64 | ~uint64
}

// Metric is a report field that can be explicitly unavailable: on the
// first sample, after a counter discontinuity, or when its /proc source
// could not be read. Value is the zero value whenever Available is false.
type Metric[T Number] struct {
	Value     T
	Available bool
}

// Avail returns an available Metric holding v.
func Avail[T Number](v T) Metric[T] { return Metric[T]{Value: v, Available: true} }

// Unavailable returns a Metric marked unavailable.
func Unavailable[T Number]() Metric[T] { return Metric[T]{} }

// Get returns the value and whether it is available.
func (m Metric[T]) Get() (T, bool) { return m.Value, m.Available }

// Or returns the value, or def when unavailable.
func (m Metric[T]) Or(def T) T {
	if !m.Available {
		return def
	}
	return m.Value
}

// MarshalJSON encodes an unavailable metric as null.
func (m Metric[T]) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = Metric[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Avail(v)
	return nil
}
