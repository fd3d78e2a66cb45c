package fixedmath

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Series lengths chosen so the truncated tail is below one wei across the
// whole reduced input range (|r| < ln 2 for exp, z < 1/3 for ln).
const (
	expSeriesTerms = 24
	lnSeriesTerms  = 20
)

// ExpWad computes e^x for a signed WAD input. Inputs above MaxExpInputWad are
// rejected; inputs below MinExpInputWad return exactly zero. The result is
// accurate to within a few wei.
//
// The input is reduced to x = q*ln2 + r with r in [0, ln2), then e^r is summed
// as a Taylor series and the result shifted by q bits.
func ExpWad(x sdkmath.Int) (sdkmath.Int, error) {
	if x.GT(MaxExpInputWad) {
		return sdkmath.ZeroInt(), ErrExpOutOfRange
	}
	if x.LT(MinExpInputWad) {
		return sdkmath.ZeroInt(), nil
	}

	xb := x.BigInt()
	ln2 := Ln2Wad.BigInt()

	// Floor division so the remainder is non-negative even for negative x.
	q := new(big.Int)
	r := new(big.Int)
	q.DivMod(xb, ln2, r)

	wad := Wad.BigInt()
	sum := new(big.Int).Set(wad)
	term := new(big.Int).Set(wad)
	for i := int64(1); i <= expSeriesTerms; i++ {
		term.Mul(term, r)
		term.Quo(term, wad)
		term.Quo(term, big.NewInt(i))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	if q.Sign() >= 0 {
		sum.Lsh(sum, uint(q.Int64()))
	} else {
		sum.Rsh(sum, uint(-q.Int64()))
	}
	return sdkmath.NewIntFromBigInt(sum), nil
}

// LnWad computes the natural logarithm of a positive WAD input, returning a
// signed WAD result accurate to within a few tens of wei.
//
// The input is normalized to y in [1, 2) by powers of two, then ln(y) is
// computed via the artanh series 2*(z + z^3/3 + z^5/5 + ...) with
// z = (y-1)/(y+1), which stays below 1/3 on the reduced range.
func LnWad(x sdkmath.Int) (sdkmath.Int, error) {
	if !x.IsPositive() {
		return sdkmath.ZeroInt(), ErrLnNonPositive
	}

	wad := Wad.BigInt()
	two := big.NewInt(2)

	y := new(big.Int).Set(x.BigInt())
	k := int64(0)
	twoWad := TwoWad.BigInt()
	for y.Cmp(twoWad) >= 0 {
		y.Quo(y, two)
		k++
	}
	for y.Cmp(wad) < 0 {
		y.Mul(y, two)
		k--
	}

	num := new(big.Int).Sub(y, wad)
	den := new(big.Int).Add(y, wad)
	z := new(big.Int).Mul(num, wad)
	z.Quo(z, den)

	zsq := new(big.Int).Mul(z, z)
	zsq.Quo(zsq, wad)

	sum := new(big.Int)
	pow := new(big.Int).Set(z)
	tmp := new(big.Int)
	for n := int64(0); n < lnSeriesTerms; n++ {
		tmp.Quo(pow, big.NewInt(2*n+1))
		if tmp.Sign() == 0 {
			break
		}
		sum.Add(sum, tmp)
		pow.Mul(pow, zsq)
		pow.Quo(pow, wad)
	}
	sum.Mul(sum, two)

	shift := new(big.Int).Mul(big.NewInt(k), Ln2Wad.BigInt())
	sum.Add(sum, shift)
	return sdkmath.NewIntFromBigInt(sum), nil
}
