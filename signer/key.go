package signer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"

	"relayer/utils"
)

// LoadKey parses relayer key material: a JSON array of 64 bytes, a base58
// secret key, or a path to a solana-keygen file. Empty input yields an
// ephemeral key, which is only useful for local testing.
func LoadKey(raw string, log *slog.Logger) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		if log != nil {
			log.Warn(utils.EPHEMERAL_KEY)
		}
		return solana.NewRandomPrivateKey()
	case strings.HasPrefix(raw, "["):
		var b []byte
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return nil, fmt.Errorf("parse relayer key bytes: %w", err)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("relayer key byte %d out of range", v)
			}
			b = append(b, byte(v))
		}
		if len(b) != 64 {
			return nil, fmt.Errorf("relayer key must be 64 bytes, got %d", len(b))
		}
		return solana.PrivateKey(b), nil
	}

	if _, err := os.Stat(raw); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(raw)
		if err != nil {
			return nil, fmt.Errorf("read relayer keygen file: %w", err)
		}
		return key, nil
	}

	key, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("relayer key must be 64 bytes, got %d", len(key))
	}
	return key, nil
}
