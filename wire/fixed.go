package wire

import (
	"fmt"
	"math"
)

// Fixed is the protocol's signed 24.8 fixed-point number, used
// anywhere sub-pixel precision matters since the core protocol has no
// floating point type.
type Fixed int32

func FixedInt(v int) Fixed {
	return Fixed(v << 8)
}

func FixedFloat(v float64) Fixed {
	i, frac := math.Modf(v)
	return Fixed((int(i) << 8) | int(math.Abs(frac)*math.Exp2(8)))
}

// Int is the integer part, truncated toward negative infinity.
func (f Fixed) Int() int {
	return int(f >> 8)
}

// Frac is the fractional part in 1/256ths.
func (f Fixed) Frac() int {
	return int(uint32(f) & 0xff)
}

func (f Fixed) Float() float64 {
	return float64(f.Int()) + math.Abs(float64(f.Frac())*math.Exp2(-8))
}

func (f Fixed) String() string {
	if frac := f.Frac(); frac != 0 {
		return fmt.Sprintf("%v.%v", f.Int(), frac)
	}
	return fmt.Sprint(f.Int())
}
