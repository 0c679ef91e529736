package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// View is the monotonically increasing, 256-bit counter that rotates the
// primary. It never wraps: arithmetic goes through uint256 rather than a
// machine word so a malicious or buggy peer cannot force a rollover.
type View struct {
	v uint256.Int
}

// ViewZero is the view at genesis.
var ViewZero = View{}

// NewView builds a View from a small non-negative int, for tests and
// config defaults.
func NewView(v uint64) View {
	var view View
	view.v.SetUint64(v)
	return view
}

func (v View) Uint64() uint64 {
	return v.v.Uint64()
}

func (v View) Add1() View {
	var out View
	out.v.AddUint64(&v.v, 1)
	return out
}

func (v View) Sub1() View {
	var out View
	out.v.SubUint64(&v.v, 1)
	return out
}

func (v View) Cmp(other View) int {
	return v.v.Cmp(&other.v)
}

func (v View) Equal(other View) bool {
	return v.Cmp(other) == 0
}

func (v View) Less(other View) bool {
	return v.Cmp(other) < 0
}

func (v View) Greater(other View) bool {
	return v.Cmp(other) > 0
}

func (v View) GreaterOrEqual(other View) bool {
	return v.Cmp(other) >= 0
}

// Min returns the smaller of v and other.
func (v View) Min(other View) View {
	if v.Less(other) {
		return v
	}
	return other
}

// ModN computes (v + extra) mod n, used for primary election. n must be > 0.
func (v View) ModN(extra uint64, n uint64) uint64 {
	var sum uint256.Int
	sum.AddUint64(&v.v, extra)
	var nBig uint256.Int
	nBig.SetUint64(n)
	var mod uint256.Int
	mod.Mod(&sum, &nBig)
	return mod.Uint64()
}

func (v View) String() string {
	return v.v.ToBig().String()
}

func (v View) Bytes() []byte {
	b := v.v.Bytes32()
	return b[:]
}

// MarshalJSON encodes the view as a decimal string; View has no exported
// field, so without this the wire codec would drop it.
func (v View) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

func (v *View) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 || v.v.SetFromBig(b) {
		return fmt.Errorf("invalid view %q", s)
	}
	return nil
}
