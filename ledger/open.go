// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// Ledger modes accepted by Open.
const (
	ModeEVM    = "evm"
	ModeMemory = "memory"
)

// MemoryOperator is the account a memory ledger deploys from.
const MemoryOperator = "0x0000000000000000000000000000000000000001"

// Open returns a client for mode and a function that releases it.
func Open(ctx context.Context, mode string, cfg EVMConfig) (Client, func(), error) {
	switch mode {
	case ModeMemory:
		slog.Warn("using in-memory ledger; contracts are lost on exit")
		return NewMemory(MemoryOperator), func() {}, nil
	case ModeEVM:
		e, err := DialEVM(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown ledger mode %q", mode)
}
