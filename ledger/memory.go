// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/pitwall/models"
)

// Memory is an in-process chain with the same contract semantics as the
// VotingFactory/Voting pair. It backs the "memory" ledger mode and tests.
//
// Several Memory values may share one chain, each acting as a different
// account (see WithAccount).
type Memory struct {
	chain   *memChain
	account string
}

type memContract struct {
	admin      string
	names      []string
	votes      []*big.Int
	start, end time.Time
	active     bool
	authorized map[string]bool
	voted      map[string]bool
}

type memChain struct {
	mu        sync.Mutex
	contracts map[string]*memContract
	seq       uint64
	block     uint64
	now       func() time.Time

	faults    map[Op][]error
	submitted map[Op]int

	held  bool
	queue []func()
}

// NewMemory creates an empty chain operated by account.
func NewMemory(account string) *Memory {
	return &Memory{
		chain: &memChain{
			contracts: make(map[string]*memContract),
			now:       time.Now,
			faults:    make(map[Op][]error),
			submitted: make(map[Op]int),
		},
		account: normalize(account),
	}
}

// WithAccount returns a client on the same chain signing as another account.
func (m *Memory) WithAccount(account string) *Memory {
	return &Memory{chain: m.chain, account: normalize(account)}
}

// Account returns the signing account.
func (m *Memory) Account() string {
	return m.account
}

// SetClock replaces the chain's block time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.chain.now = now
}

// FailNext makes the next submission of op fail with err before it reaches
// the chain.
func (m *Memory) FailNext(op Op, err error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.chain.faults[op] = append(m.chain.faults[op], err)
}

// Hold stops finalizing transactions until Release is called. Submissions
// made while held stay pending.
func (m *Memory) Hold() {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.chain.held = true
}

// Release finalizes every held transaction in submission order.
func (m *Memory) Release() {
	m.chain.mu.Lock()
	queue := m.chain.queue
	m.chain.queue = nil
	m.chain.held = false
	m.chain.mu.Unlock()

	for _, finalize := range queue {
		finalize()
	}
}

// Submissions returns how many transactions of op reached the chain.
func (m *Memory) Submissions(op Op) int {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return m.chain.submitted[op]
}

// Authorized returns the sorted set of wallets authorized on a contract.
func (m *Memory) Authorized(contract string) []string {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()

	c, ok := m.chain.contracts[normalize(contract)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.authorized))
	for w := range c.authorized {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Contracts returns the number of deployed contracts.
func (m *Memory) Contracts() int {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return len(m.chain.contracts)
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// submit runs apply once in dry-run mode to reject the call up front, the way
// gas estimation does on a real node, then finalizes it now or on Release.
// Caller must not hold the lock.
func (m *Memory) submit(op Op, contract string, apply func(c *memChain, dryRun bool) (string, error)) (*Pending, error) {
	ch := m.chain
	ch.mu.Lock()

	if errs := ch.faults[op]; len(errs) > 0 {
		err := errs[0]
		ch.faults[op] = errs[1:]
		ch.mu.Unlock()
		return nil, err
	}

	if _, err := apply(ch, true); err != nil {
		ch.mu.Unlock()
		return nil, err
	}

	ch.seq++
	ch.submitted[op]++
	h := Handle{Op: op, TxHash: fmt.Sprintf("0x%064x", ch.seq), Contract: contract}

	done := make(chan struct{})
	var (
		receipt Receipt
		failure error
	)
	finalize := func() {
		ch.mu.Lock()
		addr, err := apply(ch, false)
		ch.block++
		receipt = Receipt{TxHash: h.TxHash, BlockNumber: ch.block, ContractAddress: addr}
		failure = err
		ch.mu.Unlock()
		close(done)
	}

	if ch.held {
		ch.queue = append(ch.queue, finalize)
		ch.mu.Unlock()
	} else {
		ch.mu.Unlock()
		finalize()
	}

	return NewPending(h, func(ctx context.Context) (Receipt, error) {
		select {
		case <-done:
			if failure != nil {
				return Receipt{}, failure
			}
			return receipt, nil
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}), nil
}

// newMemoryAddress returns a random contract address. Addresses must not
// repeat across processes since a persistent store may outlive the chain.
func newMemoryAddress() string {
	id := uuid.New()
	return fmt.Sprintf("0x%08x%s", memAddressPrefix, hex.EncodeToString(id[:]))
}

const memAddressPrefix = 0xe1ec0000

func rejected(format string, args ...any) error {
	return models.NewError(models.KindLedgerRejected, format, args...)
}

func (ch *memChain) contract(addr string) (*memContract, error) {
	c, ok := ch.contracts[normalize(addr)]
	if !ok {
		return nil, rejected("no contract at %s", addr)
	}
	return c, nil
}

// DeployElection creates a new contract owned by the calling account.
func (m *Memory) DeployElection(ctx context.Context, candidateNames []string, start, end time.Time) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.KindLedgerUnavailable, err, "deploy not submitted")
	}
	names := append([]string(nil), candidateNames...)
	return m.submit(OpDeploy, "", func(ch *memChain, dryRun bool) (string, error) {
		if len(names) == 0 {
			return "", rejected("no candidates")
		}
		if !start.Before(end) {
			return "", rejected("start time must be before end time")
		}
		if dryRun {
			return "", nil
		}
		addr := newMemoryAddress()
		votes := make([]*big.Int, len(names))
		for i := range votes {
			votes[i] = new(big.Int)
		}
		ch.contracts[addr] = &memContract{
			admin:      m.account,
			names:      names,
			votes:      votes,
			start:      start,
			end:        end,
			active:     true,
			authorized: make(map[string]bool),
			voted:      make(map[string]bool),
		}
		return addr, nil
	})
}

// AuthorizeAddresses grants voting rights. Already authorized wallets are
// no-ops. Only the deploying account may authorize.
func (m *Memory) AuthorizeAddresses(ctx context.Context, contract string, wallets []string) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.KindLedgerUnavailable, err, "authorize not submitted")
	}
	batch := append([]string(nil), wallets...)
	return m.submit(OpAuthorize, contract, func(ch *memChain, dryRun bool) (string, error) {
		c, err := ch.contract(contract)
		if err != nil {
			return "", err
		}
		if c.admin != m.account {
			return "", rejected("caller %s is not the contract admin", m.account)
		}
		if dryRun {
			return "", nil
		}
		for _, w := range batch {
			c.authorized[normalize(w)] = true
		}
		return "", nil
	})
}

// CastVote records a vote signed by voter.
func (m *Memory) CastVote(ctx context.Context, contract string, candidateIndex int, voter string) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.KindLedgerUnavailable, err, "vote not submitted")
	}
	v := normalize(voter)
	return m.submit(OpVote, contract, func(ch *memChain, dryRun bool) (string, error) {
		c, err := ch.contract(contract)
		if err != nil {
			return "", err
		}
		now := ch.now()
		switch {
		case !c.active || now.Before(c.start) || now.After(c.end):
			return "", models.NewError(models.KindVotingClosed, "voting is not open")
		case !c.authorized[v]:
			return "", models.NewError(models.KindNotAuthorized, "wallet %s is not authorized", voter)
		case c.voted[v]:
			return "", models.NewError(models.KindAlreadyVoted, "wallet %s has already voted", voter)
		case candidateIndex < 0 || candidateIndex >= len(c.votes):
			return "", rejected("candidate index %d out of range", candidateIndex)
		}
		if dryRun {
			return "", nil
		}
		c.voted[v] = true
		c.votes[candidateIndex].Add(c.votes[candidateIndex], big.NewInt(1))
		return "", nil
	})
}

// StopElection closes voting permanently.
func (m *Memory) StopElection(ctx context.Context, contract string) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.KindLedgerUnavailable, err, "stop not submitted")
	}
	return m.submit(OpStop, contract, func(ch *memChain, dryRun bool) (string, error) {
		c, err := ch.contract(contract)
		if err != nil {
			return "", err
		}
		if c.admin != m.account {
			return "", models.NewError(models.KindNotAuthorized, "caller %s is not the contract admin", m.account)
		}
		if !c.active {
			return "", models.NewError(models.KindAlreadyStopped, "voting already stopped")
		}
		if !dryRun {
			c.active = false
		}
		return "", nil
	})
}

// GetTally returns a copy of the counters.
func (m *Memory) GetTally(ctx context.Context, contract string) ([]TallyEntry, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()

	c, err := m.chain.contract(contract)
	if err != nil {
		return nil, err
	}
	out := make([]TallyEntry, len(c.names))
	for i, name := range c.names {
		out[i] = TallyEntry{Name: name, Votes: new(big.Int).Set(c.votes[i])}
	}
	return out, nil
}

// IsActive reports the contract's active flag.
func (m *Memory) IsActive(ctx context.Context, contract string) (bool, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()

	c, err := m.chain.contract(contract)
	if err != nil {
		return false, err
	}
	return c.active, nil
}

// HasVoted reports whether wallet has voted on the contract.
func (m *Memory) HasVoted(ctx context.Context, contract, wallet string) (bool, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()

	c, err := m.chain.contract(contract)
	if err != nil {
		return false, err
	}
	return c.voted[normalize(wallet)], nil
}
