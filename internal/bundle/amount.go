package bundle

import (
	"math/big"
	"strings"

	xerrors "BundleHub-Chain/internal/errors"
)

// NativeDecimals is the precision assumed for the chain's native currency
// and for any token whose decimals cannot be read.
const NativeDecimals = 18

// CodeInvalidAmount marks malformed or negative user-supplied amounts.
const CodeInvalidAmount xerrors.Code = "INVALID_AMOUNT"

func init() {
	xerrors.Register(CodeInvalidAmount, xerrors.Attributes{
		Message:   "invalid amount",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// Amount pairs a human-readable decimal string with the token's native
// integer representation. The converter functions below are the only place
// allowed to produce this pair, so decimal handling bugs cannot spread.
type Amount struct {
	Human    string
	Native   *big.Int
	Decimals uint8
}

// ToNative converts a human decimal string into native integer units. The
// conversion is pure integer arithmetic; binary floating point never touches
// amounts that will be submitted on-chain. Fractional digits beyond the
// token's precision are truncated toward zero.
func ToNative(human string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(human)
	if s == "" {
		return nil, xerrors.New(CodeInvalidAmount, "金额不能为空")
	}
	if strings.HasPrefix(s, "-") {
		return nil, xerrors.New(CodeInvalidAmount, "金额不能为负数", xerrors.WithMetadata("amount", human))
	}
	s = strings.TrimPrefix(s, "+")

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, xerrors.New(CodeInvalidAmount, "金额格式不正确", xerrors.WithMetadata("amount", human))
		}
	}
	if intPart == "" && fracPart == "" {
		return nil, xerrors.New(CodeInvalidAmount, "金额格式不正确", xerrors.WithMetadata("amount", human))
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, xerrors.New(CodeInvalidAmount, "金额格式不正确", xerrors.WithMetadata("amount", human))
	}

	if len(fracPart) > int(decimals) {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	native, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, xerrors.New(CodeInvalidAmount, "金额格式不正确", xerrors.WithMetadata("amount", human))
	}
	return native, nil
}

// ToHuman renders native integer units as a decimal string, trimming
// insignificant trailing zeros.
func ToHuman(native *big.Int, decimals uint8) string {
	if native == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(native)
	if native.Sign() < 0 {
		sign = "-"
	}
	digits := abs.String()
	if int(decimals) >= len(digits) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	cut := len(digits) - int(decimals)
	intPart := digits[:cut]
	fracPart := strings.TrimRight(digits[cut:], "0")
	if fracPart == "" {
		return sign + intPart
	}
	return sign + intPart + "." + fracPart
}

// NewAmount builds the paired representation from a human decimal string.
func NewAmount(human string, decimals uint8) (Amount, error) {
	native, err := ToNative(human, decimals)
	if err != nil {
		return Amount{}, err
	}
	// Re-render so the human side reflects any truncated precision.
	return Amount{Human: ToHuman(native, decimals), Native: native, Decimals: decimals}, nil
}

// NewAmountFromNative builds the paired representation from native units.
func NewAmountFromNative(native *big.Int, decimals uint8) Amount {
	if native == nil {
		native = new(big.Int)
	}
	return Amount{Human: ToHuman(native, decimals), Native: native, Decimals: decimals}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
