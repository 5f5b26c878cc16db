// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/pitwall/models"
)

func TestPendingAwait(t *testing.T) {
	h := Handle{Op: OpVote, TxHash: "0xabc", Contract: "0xc0"}

	t.Run("confirmed fills tx hash", func(t *testing.T) {
		p := NewPending(h, func(ctx context.Context) (Receipt, error) {
			return Receipt{BlockNumber: 7}, nil
		})
		out := p.Await(context.Background())
		assert.Equal(t, StatusConfirmed, out.Status)
		r, err := out.Result()
		require.NoError(t, err)
		assert.Equal(t, "0xabc", r.TxHash)
		assert.Equal(t, uint64(7), r.BlockNumber)
	})

	t.Run("abandoned wait is pending", func(t *testing.T) {
		p := NewPending(h, func(ctx context.Context) (Receipt, error) {
			<-ctx.Done()
			return Receipt{}, ctx.Err()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		out := p.Await(ctx)
		assert.Equal(t, StatusPending, out.Status)
		assert.Equal(t, "pending", out.Status.String())

		_, err := out.Result()
		var e *models.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, models.KindConfirmationPending, e.Kind)
		assert.Equal(t, "0xabc", e.TxHash)
		assert.Equal(t, "0xc0", e.ContractAddress)
	})

	t.Run("classified failure keeps kind", func(t *testing.T) {
		p := NewPending(h, func(ctx context.Context) (Receipt, error) {
			return Receipt{}, models.NewError(models.KindAlreadyVoted, "already voted")
		})
		out := p.Await(context.Background())
		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, "failed", out.Status.String())

		_, err := out.Result()
		var e *models.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, models.KindAlreadyVoted, e.Kind)
		assert.Equal(t, "0xabc", e.TxHash)
	})

	t.Run("unclassified failure is unavailable", func(t *testing.T) {
		p := NewPending(h, func(ctx context.Context) (Receipt, error) {
			return Receipt{}, errors.New("socket closed")
		})
		_, err := p.Await(context.Background()).Result()
		assert.Equal(t, models.KindLedgerUnavailable, models.KindOf(err))
	})
}

func TestConfirm_ZeroTimeoutUsesContext(t *testing.T) {
	p := NewPending(Handle{Op: OpStop}, func(ctx context.Context) (Receipt, error) {
		_, hasDeadline := ctx.Deadline()
		if hasDeadline {
			return Receipt{}, errors.New("unexpected deadline")
		}
		return Receipt{TxHash: "0x1"}, nil
	})
	r, err := Confirm(context.Background(), p, 0)
	require.NoError(t, err)
	assert.Equal(t, "0x1", r.TxHash)
}

func TestNormalize(t *testing.T) {
	assert.NoError(t, Normalize(nil, OpDeploy, ""))

	typed := models.NewError(models.KindNotAuthorized, "no")
	assert.Same(t, typed, Normalize(typed, OpVote, "0x1"))

	err := Normalize(errors.New("dial tcp: refused"), OpAuthorize, "0x1")
	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.KindLedgerUnavailable, e.Kind)
	assert.Equal(t, "0x1", e.ContractAddress)
	assert.True(t, e.Retryable())
}

type fakeRPCError struct{}

func (fakeRPCError) Error() string  { return "insufficient funds" }
func (fakeRPCError) ErrorCode() int { return -32000 }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind models.Kind
	}{
		{"transport", errors.New("connection reset"), models.KindLedgerUnavailable},
		{"rpc error", fakeRPCError{}, models.KindLedgerRejected},
		{"revert", errors.New("execution reverted: Already voted"), models.KindLedgerRejected},
		{"no code", bind.ErrNoCode, models.KindLedgerRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, models.KindOf(classify(tt.err, OpVote, "0x1")))
		})
	}
}

func TestABIs(t *testing.T) {
	f, err := abi.JSON(strings.NewReader(factoryABI))
	require.NoError(t, err)
	assert.Contains(t, f.Methods, "createVoting")
	assert.Contains(t, f.Events, "VotingCreated")

	v, err := abi.JSON(strings.NewReader(votingABI))
	require.NoError(t, err)
	for _, m := range []string{"authorizeVoters", "vote", "stopVoting", "getResults", "votingActive", "hasVoted"} {
		assert.Contains(t, v.Methods, m)
	}
}

func TestCreatedAddress(t *testing.T) {
	fABI, err := abi.JSON(strings.NewReader(factoryABI))
	require.NoError(t, err)
	factory := common.HexToAddress("0x00000000000000000000000000000000000000fa")
	e := &EVM{factoryABI: fABI, factory: bind.NewBoundContract(factory, fABI, nil, nil, nil)}

	voting := common.HexToAddress("0x1234567890123456789012345678901234567890")
	admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
	rcpt := &types.Receipt{Logs: []*types.Log{
		{Address: factory, Topics: []common.Hash{common.HexToHash("0x01")}},
		{Address: factory, Topics: []common.Hash{
			fABI.Events["VotingCreated"].ID,
			common.BytesToHash(voting.Bytes()),
			common.BytesToHash(admin.Bytes()),
		}},
	}}

	addr, err := e.createdAddress(rcpt)
	require.NoError(t, err)
	assert.Equal(t, voting, addr)

	_, err = e.createdAddress(&types.Receipt{})
	assert.Equal(t, models.KindLedgerRejected, models.KindOf(err))
}

func TestEVMCastVote_UnknownVoterKey(t *testing.T) {
	vABI, err := abi.JSON(strings.NewReader(votingABI))
	require.NoError(t, err)
	e := &EVM{votingABI: vABI}

	contract := "0x1234567890123456789012345678901234567890"
	_, err = e.CastVote(context.Background(), contract, 0, "0x000000000000000000000000000000000000a11c")
	assert.Equal(t, models.KindNotAuthorized, models.KindOf(err))
	assert.ErrorContains(t, err, "no signing key")

	_, err = e.CastVote(context.Background(), contract, 0, "not-a-wallet")
	assert.Equal(t, models.KindLedgerRejected, models.KindOf(err))
}

func TestParseKey(t *testing.T) {
	const hexKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	k1, err := parseKey(hexKey)
	require.NoError(t, err)
	k2, err := parseKey(" 0x" + hexKey + "\n")
	require.NoError(t, err)
	assert.True(t, k1.Equal(k2))

	_, err = parseKey("not-a-key")
	assert.Error(t, err)
}
