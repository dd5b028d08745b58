package iec61850

// Value is the payload of a report or poll callback. Native report
// payloads are heterogeneous (floats, ints, nested sequences); the tagged
// union keeps that shape without resorting to reflection.
type Value interface {
	isValue()
}

// Float is a floating point leaf value.
type Float float64

// Int is an integer leaf value.
type Int int64

// Seq is a nested sequence of values.
type Seq []Value

func (Float) isValue() {}
func (Int) isValue()   {}
func (Seq) isValue()   {}

// FirstFloat walks a value depth-first and returns the first numeric leaf,
// promoting integers to float. The second result is false when the value
// holds no numeric leaf at all.
func FirstFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Float:
		return float64(x), true
	case Int:
		return float64(x), true
	case Seq:
		for _, item := range x {
			if f, ok := FirstFloat(item); ok {
				return f, true
			}
		}
	}
	return 0, false
}
