// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/danielhkuo/pitwall/models"
)

// EVMConfig configures the connection to an EVM node.
type EVMConfig struct {
	RPCURL         string
	PrivateKey     string // hex, operator account that deploys and administers elections
	FactoryAddress string
	// VoterKeys are hex keys the node may sign votes with. Only useful on
	// development chains; voters normally sign from their own wallets.
	VoterKeys []string
}

// EVM drives VotingFactory and Voting contracts over JSON-RPC.
type EVM struct {
	client  *ethclient.Client
	chainID *big.Int

	key  *ecdsa.PrivateKey
	from common.Address

	factoryABI abi.ABI
	votingABI  abi.ABI
	factory    *bind.BoundContract

	voterKeys map[common.Address]*ecdsa.PrivateKey

	// sendMu serializes submissions so nonces from the shared operator
	// account are assigned in order.
	sendMu sync.Mutex
}

// tallyRow mirrors the getResults tuple.
type tallyRow struct {
	Name      string   `json:"name"`
	VoteCount *big.Int `json:"voteCount"`
}

// DialEVM connects to the node and loads the operator account.
func DialEVM(ctx context.Context, cfg EVMConfig) (*EVM, error) {
	if !common.IsHexAddress(cfg.FactoryAddress) {
		return nil, fmt.Errorf("invalid factory address %q", cfg.FactoryAddress)
	}

	key, err := parseKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	fABI, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	vABI, err := abi.JSON(strings.NewReader(votingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse voting ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger node: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	voterKeys := make(map[common.Address]*ecdsa.PrivateKey, len(cfg.VoterKeys))
	for _, hexKey := range cfg.VoterKeys {
		k, err := parseKey(hexKey)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid voter key: %w", err)
		}
		voterKeys[crypto.PubkeyToAddress(k.PublicKey)] = k
	}

	factoryAddr := common.HexToAddress(cfg.FactoryAddress)
	e := &EVM{
		client:     client,
		chainID:    chainID,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		factoryABI: fABI,
		votingABI:  vABI,
		factory:    bind.NewBoundContract(factoryAddr, fABI, client, client, client),
		voterKeys:  voterKeys,
	}

	slog.Info("ledger connected",
		"chain_id", chainID.String(),
		"factory", factoryAddr.Hex(),
		"operator", e.from.Hex(),
	)
	return e, nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}

// Close releases the RPC connection.
func (e *EVM) Close() {
	e.client.Close()
}

// Operator returns the operator account address.
func (e *EVM) Operator() string {
	return e.from.Hex()
}

func (e *EVM) voting(contract string) (*bind.BoundContract, error) {
	if !common.IsHexAddress(contract) {
		return nil, models.NewError(models.KindLedgerRejected, "invalid contract address %q", contract)
	}
	addr := common.HexToAddress(contract)
	return bind.NewBoundContract(addr, e.votingABI, e.client, e.client, e.client), nil
}

// classify maps node errors onto the error taxonomy. Anything the node
// answered with an RPC error (reverts included) is a rejection; transport
// failures are transient.
func classify(err error, op Op, contract string) error {
	var (
		rpcErr  rpc.Error
		dataErr rpc.DataError
		kind    = models.KindLedgerUnavailable
	)
	switch {
	case errors.As(err, &dataErr), errors.As(err, &rpcErr),
		errors.Is(err, bind.ErrNoCode),
		strings.Contains(err.Error(), "execution reverted"):
		kind = models.KindLedgerRejected
	}
	return &models.Error{
		Kind:            kind,
		Message:         string(op) + " failed",
		ContractAddress: contract,
		Err:             err,
	}
}

func (e *EVM) transact(ctx context.Context, key *ecdsa.PrivateKey, c *bind.BoundContract, method string, params ...any) (*types.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, e.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return c.Transact(opts, method, params...)
}

// waitMined blocks until tx is mined. ctx errors are returned unwrapped so
// Pending.Await can tell abandonment from failure.
func (e *EVM) waitMined(ctx context.Context, tx *types.Transaction, op Op, contract string) (*types.Receipt, error) {
	rcpt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err, op, contract)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, &models.Error{
			Kind:            models.KindLedgerRejected,
			Message:         string(op) + " transaction reverted",
			ContractAddress: contract,
			TxHash:          tx.Hash().Hex(),
		}
	}
	return rcpt, nil
}

func (e *EVM) pending(op Op, contract string, tx *types.Transaction) *Pending {
	h := Handle{Op: op, TxHash: tx.Hash().Hex(), Contract: contract}
	slog.Info("ledger transaction submitted", "op", op, "tx", h.TxHash, "contract", contract)

	return NewPending(h, func(ctx context.Context) (Receipt, error) {
		rcpt, err := e.waitMined(ctx, tx, op, contract)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{TxHash: h.TxHash, BlockNumber: rcpt.BlockNumber.Uint64()}, nil
	})
}

// DeployElection calls VotingFactory.createVoting and resolves the new
// contract address from the VotingCreated event.
func (e *EVM) DeployElection(ctx context.Context, candidateNames []string, start, end time.Time) (*Pending, error) {
	tx, err := e.transact(ctx, e.key, e.factory, "createVoting",
		candidateNames, big.NewInt(start.Unix()), big.NewInt(end.Unix()))
	if err != nil {
		return nil, classify(err, OpDeploy, "")
	}

	h := Handle{Op: OpDeploy, TxHash: tx.Hash().Hex()}
	slog.Info("ledger transaction submitted", "op", OpDeploy, "tx", h.TxHash)

	return NewPending(h, func(ctx context.Context) (Receipt, error) {
		rcpt, err := e.waitMined(ctx, tx, OpDeploy, "")
		if err != nil {
			return Receipt{}, err
		}
		addr, err := e.createdAddress(rcpt)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{
			TxHash:          h.TxHash,
			BlockNumber:     rcpt.BlockNumber.Uint64(),
			ContractAddress: addr.Hex(),
		}, nil
	}), nil
}

func (e *EVM) createdAddress(rcpt *types.Receipt) (common.Address, error) {
	event := e.factoryABI.Events["VotingCreated"]
	for _, lg := range rcpt.Logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		var ev struct {
			VotingAddress common.Address
			Admin         common.Address
		}
		if err := e.factory.UnpackLog(&ev, "VotingCreated", *lg); err != nil {
			return common.Address{}, fmt.Errorf("failed to decode VotingCreated: %w", err)
		}
		return ev.VotingAddress, nil
	}
	return common.Address{}, &models.Error{
		Kind:    models.KindLedgerRejected,
		Message: "deployment receipt has no VotingCreated event",
		TxHash:  rcpt.TxHash.Hex(),
	}
}

// AuthorizeAddresses calls Voting.authorizeVoters with the whole batch.
func (e *EVM) AuthorizeAddresses(ctx context.Context, contract string, wallets []string) (*Pending, error) {
	c, err := e.voting(contract)
	if err != nil {
		return nil, err
	}

	addrs := make([]common.Address, 0, len(wallets))
	for _, w := range wallets {
		if !common.IsHexAddress(w) {
			return nil, models.NewError(models.KindLedgerRejected, "invalid wallet address %q", w)
		}
		addrs = append(addrs, common.HexToAddress(w))
	}

	tx, err := e.transact(ctx, e.key, c, "authorizeVoters", addrs)
	if err != nil {
		return nil, classify(err, OpAuthorize, contract)
	}
	return e.pending(OpAuthorize, contract, tx), nil
}

// CastVote signs a vote with the voter's key. The node only holds keys
// listed in EVMConfig.VoterKeys.
func (e *EVM) CastVote(ctx context.Context, contract string, candidateIndex int, voter string) (*Pending, error) {
	c, err := e.voting(contract)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(voter) {
		return nil, models.NewError(models.KindLedgerRejected, "invalid wallet address %q", voter)
	}
	voterAddr := common.HexToAddress(voter)
	key, ok := e.voterKeys[voterAddr]
	if !ok {
		return nil, models.NewError(models.KindNotAuthorized, "no signing key for wallet %s", voterAddr.Hex())
	}

	active, err := e.callBool(ctx, c, contract, "votingActive")
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, &models.Error{Kind: models.KindVotingClosed, Message: "voting is not open", ContractAddress: contract}
	}
	authorized, err := e.callBool(ctx, c, contract, "authorizedVoters", voterAddr)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, &models.Error{Kind: models.KindNotAuthorized, Message: "wallet is not authorized", ContractAddress: contract}
	}
	voted, err := e.callBool(ctx, c, contract, "hasVoted", voterAddr)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, &models.Error{Kind: models.KindAlreadyVoted, Message: "wallet has already voted", ContractAddress: contract}
	}

	tx, err := e.transact(ctx, key, c, "vote", big.NewInt(int64(candidateIndex)))
	if err != nil {
		return nil, classify(err, OpVote, contract)
	}
	return e.pending(OpVote, contract, tx), nil
}

// StopElection calls Voting.stopVoting.
func (e *EVM) StopElection(ctx context.Context, contract string) (*Pending, error) {
	c, err := e.voting(contract)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "admin"); err != nil {
		return nil, classify(err, OpStop, contract)
	}
	admin := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if admin != e.from {
		return nil, &models.Error{Kind: models.KindNotAuthorized, Message: "operator is not the contract admin", ContractAddress: contract}
	}

	active, err := e.callBool(ctx, c, contract, "votingActive")
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, &models.Error{Kind: models.KindAlreadyStopped, Message: "voting already stopped", ContractAddress: contract}
	}

	tx, err := e.transact(ctx, e.key, c, "stopVoting")
	if err != nil {
		return nil, classify(err, OpStop, contract)
	}
	return e.pending(OpStop, contract, tx), nil
}

func (e *EVM) callBool(ctx context.Context, c *bind.BoundContract, contract, method string, params ...any) (bool, error) {
	var out []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return false, classify(err, Op(method), contract)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GetTally calls Voting.getResults.
func (e *EVM) GetTally(ctx context.Context, contract string) ([]TallyEntry, error) {
	c, err := e.voting(contract)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "getResults"); err != nil {
		return nil, classify(err, "getResults", contract)
	}
	rows := *abi.ConvertType(out[0], new([]tallyRow)).(*[]tallyRow)

	tally := make([]TallyEntry, len(rows))
	for i, r := range rows {
		votes := new(big.Int)
		if r.VoteCount != nil {
			votes.Set(r.VoteCount)
		}
		tally[i] = TallyEntry{Name: r.Name, Votes: votes}
	}
	return tally, nil
}

// IsActive calls Voting.votingActive.
func (e *EVM) IsActive(ctx context.Context, contract string) (bool, error) {
	c, err := e.voting(contract)
	if err != nil {
		return false, err
	}
	return e.callBool(ctx, c, contract, "votingActive")
}

// HasVoted calls Voting.hasVoted.
func (e *EVM) HasVoted(ctx context.Context, contract, wallet string) (bool, error) {
	c, err := e.voting(contract)
	if err != nil {
		return false, err
	}
	if !common.IsHexAddress(wallet) {
		return false, models.NewError(models.KindLedgerRejected, "invalid wallet address %q", wallet)
	}
	return e.callBool(ctx, c, contract, "hasVoted", common.HexToAddress(wallet))
}
