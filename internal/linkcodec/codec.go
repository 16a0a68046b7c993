// Package linkcodec turns storage-channel message ids into deep-link start
// parameters and back.
//
// A message id m stored in channel c travels as base64("get-" + m*|c|), a
// range as base64("get-" + a*|c| + "-" + b*|c|). The multiplication only
// obfuscates; it is kept as-is so already issued links keep resolving.
package linkcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
)

var ErrInvalidToken = errors.New("invalid link token")

var (
	adConfirmPattern = regexp.MustCompile(`ad-confirm-(.+)`)
	batchPattern     = regexp.MustCompile(`get-(\d+)-(\d+)`)
	singlePattern    = regexp.MustCompile(`get-(\d+)`)
	base64Fixer      = strings.NewReplacer("+", "-", "/", "_")
)

// Encode returns the URL-safe unpadded base64 form of plain.
func Encode(plain string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(plain))
}

// Decode reverses Encode. Tokens minted with the standard alphabet or with
// padding are accepted as well.
func Decode(token string) (string, error) {
	t := strings.TrimRight(strings.TrimSpace(token), "=")
	if t == "" {
		return "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(base64Fixer.Replace(t))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(raw), nil
}

// Param is a decoded start parameter: AdConfirm, Batch or Single.
type Param interface {
	isParam()
}

// AdConfirm wraps another start parameter that is replayed once the ad
// click has been confirmed.
type AdConfirm struct {
	Inner string
}

// Batch is an inclusive range of storage message ids, in the order they
// appeared in the link.
type Batch struct {
	First int
	Last  int
}

type Single struct {
	MessageID int
}

func (AdConfirm) isParam() {}
func (Batch) isParam()     {}
func (Single) isParam()    {}

// Codec products exceed int64 for message ids past a few million in a
// -100... channel, so the arithmetic runs on big.Int.
type Codec struct {
	factor *big.Int
}

func New(channelID int64) Codec {
	f := big.NewInt(channelID)
	return Codec{factor: f.Abs(f)}
}

func (c Codec) convert(messageID int) string {
	if c.factor == nil {
		return "0"
	}
	return new(big.Int).Mul(big.NewInt(int64(messageID)), c.factor).String()
}

func (c Codec) FileParam(messageID int) string {
	return Encode("get-" + c.convert(messageID))
}

func (c Codec) BatchParam(first, last int) string {
	return Encode("get-" + c.convert(first) + "-" + c.convert(last))
}

func AdConfirmParam(inner string) string {
	return Encode("ad-confirm-" + inner)
}

// Parse decodes a start parameter. Matching is unanchored, so any decoded
// text containing a recognised shape is accepted.
func (c Codec) Parse(token string) (Param, error) {
	plain, err := Decode(token)
	if err != nil {
		return nil, err
	}

	if m := adConfirmPattern.FindStringSubmatch(plain); m != nil {
		return AdConfirm{Inner: m[1]}, nil
	}
	if m := batchPattern.FindStringSubmatch(plain); m != nil {
		first, err := c.unconvert(m[1])
		if err != nil {
			return nil, err
		}
		last, err := c.unconvert(m[2])
		if err != nil {
			return nil, err
		}
		return Batch{First: first, Last: last}, nil
	}
	if m := singlePattern.FindStringSubmatch(plain); m != nil {
		id, err := c.unconvert(m[1])
		if err != nil {
			return nil, err
		}
		return Single{MessageID: id}, nil
	}
	return nil, ErrInvalidToken
}

func (c Codec) unconvert(digits string) (int, error) {
	if c.factor == nil || c.factor.Sign() == 0 {
		return 0, fmt.Errorf("%w: channel id is not configured", ErrInvalidToken)
	}
	converted, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return 0, fmt.Errorf("%w: bad number %q", ErrInvalidToken, digits)
	}
	id := converted.Quo(converted, c.factor)
	if !id.IsInt64() || id.Int64() > math.MaxInt {
		return 0, fmt.Errorf("%w: message id out of range", ErrInvalidToken)
	}
	return int(id.Int64()), nil
}

// DeepLink builds the t.me start link for a bot.
func DeepLink(botUsername, param string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + param
}
