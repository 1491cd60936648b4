package polymarket

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/polybets/polybet/internal/domain"
)

// DecodeMarkets reads Gamma-shaped market JSON from r. It accepts a single
// object, a JSON array or a stream of objects (JSON lines).
func DecodeMarkets(r io.Reader) ([]domain.RawMarket, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var list []APIMarket
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("polymarket: decode market array: %w", err)
		}
		out := make([]domain.RawMarket, 0, len(list))
		for i := range list {
			out = append(out, list[i].ToRawMarket())
		}
		return out, nil
	}

	var out []domain.RawMarket
	for n := 1; ; n++ {
		var m APIMarket
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("polymarket: decode market %d: %w", n, err)
		}
		out = append(out, m.ToRawMarket())
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("empty input")
			}
			return 0, err
		}
		if !unicode.IsSpace(rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
