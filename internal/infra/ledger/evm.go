package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/insightai/insight/internal/domain"
)

// Backend is the raw contract surface the Client drives. EVM implements it
// over JSON-RPC; tests substitute stubs.
type Backend interface {
	Session(ctx context.Context, sessionID uint64) (domain.Session, error)
	SessionsByOwner(ctx context.Context, owner common.Address) ([]domain.Session, error)
	EphemeralNodes(ctx context.Context, sessionID uint64) ([]common.Address, error)
	TasksBySession(ctx context.Context, sessionID uint64) ([]domain.Task, error)
	TaskResults(ctx context.Context, sessionID, taskID uint64) ([]domain.TaskResult, error)

	// Submit signs and sends submit(sessionID, payload) and blocks until the
	// transaction is included. The receipt is returned even on revert.
	Submit(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey) (*types.Receipt, error)
}

// EVM talks to the session contracts through an Ethereum JSON-RPC node.
// One EVM is shared by all requests; it holds no per-request state.
type EVM struct {
	eth      *ethclient.Client
	sessions *bind.BoundContract
	queue    *bind.BoundContract

	chainID atomic.Pointer[big.Int]
}

// Dial connects to cfg.RPCURL and binds both contracts. HTTP endpoints
// connect lazily on first call.
func Dial(ctx context.Context, cfg Config) (*EVM, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("ledger: RPC URL is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger RPC: %w", err)
	}
	e := &EVM{
		eth:      eth,
		sessions: bind.NewBoundContract(cfg.SessionAddress, sessionABI, eth, eth, eth),
		queue:    bind.NewBoundContract(cfg.QueueAddress, queueABI, eth, eth, eth),
	}
	if cfg.ChainID > 0 {
		e.chainID.Store(big.NewInt(cfg.ChainID))
	}
	return e, nil
}

// Close releases the RPC connection.
func (e *EVM) Close() { e.eth.Close() }

// ChainID returns the network id, asking the node on first use. No lock
// is held during the RPC; concurrent cold callers may each ask, and the
// first stored answer wins.
func (e *EVM) ChainID(ctx context.Context) (*big.Int, error) {
	if id := e.chainID.Load(); id != nil {
		return id, nil
	}
	id, err := e.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	e.chainID.CompareAndSwap(nil, id)
	return e.chainID.Load(), nil
}

func (e *EVM) Session(ctx context.Context, sessionID uint64) (domain.Session, error) {
	var out []any
	if err := e.sessions.Call(&bind.CallOpts{Context: ctx}, &out, "getSession", u256(sessionID)); err != nil {
		return domain.Session{}, err
	}
	if len(out) == 0 {
		return domain.Session{}, errors.New("getSession returned no data")
	}
	t := *abi.ConvertType(out[0], new(sessionTuple)).(*sessionTuple)
	return t.toDomain(), nil
}

func (e *EVM) SessionsByOwner(ctx context.Context, owner common.Address) ([]domain.Session, error) {
	var out []any
	if err := e.sessions.Call(&bind.CallOpts{Context: ctx}, &out, "getSessionsByAddress", owner); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	tuples := *abi.ConvertType(out[0], new([]sessionTuple)).(*[]sessionTuple)
	sessions := make([]domain.Session, len(tuples))
	for i, t := range tuples {
		sessions[i] = t.toDomain()
	}
	return sessions, nil
}

func (e *EVM) EphemeralNodes(ctx context.Context, sessionID uint64) ([]common.Address, error) {
	var out []any
	if err := e.sessions.Call(&bind.CallOpts{Context: ctx}, &out, "getEphemeralNodes", u256(sessionID)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (e *EVM) TasksBySession(ctx context.Context, sessionID uint64) ([]domain.Task, error) {
	var out []any
	if err := e.queue.Call(&bind.CallOpts{Context: ctx}, &out, "getTasksBySessionId", u256(sessionID)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	tuples := *abi.ConvertType(out[0], new([]taskTuple)).(*[]taskTuple)
	tasks := make([]domain.Task, len(tuples))
	for i, t := range tuples {
		tasks[i] = t.toDomain()
	}
	return tasks, nil
}

func (e *EVM) TaskResults(ctx context.Context, sessionID, taskID uint64) ([]domain.TaskResult, error) {
	var out []any
	if err := e.queue.Call(&bind.CallOpts{Context: ctx}, &out, "getTaskResults", u256(sessionID), u256(taskID)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	tuples := *abi.ConvertType(out[0], new([]resultTuple)).(*[]resultTuple)
	results := make([]domain.TaskResult, len(tuples))
	for i, r := range tuples {
		results[i] = domain.TaskResult{
			Miner:     r.Miner.Hex(),
			Result:    r.Result,
			Timestamp: unixTime(r.Timestamp),
		}
	}
	return results, nil
}

func (e *EVM) Submit(ctx context.Context, sessionID uint64, payload string, key *ecdsa.PrivateKey) (*types.Receipt, error) {
	chainID, err := e.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	opts.Context = ctx

	tx, err := e.queue.Transact(opts, "submit", u256(sessionID), payload)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, e.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for inclusion of %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// ─── Conversions ────────────────────────────────────────────────────────────

func (t sessionTuple) toDomain() domain.Session {
	return domain.Session{
		ID:              bigUint(t.Id),
		Name:            t.Name,
		Metadata:        t.Metadata,
		Owner:           t.Owner.Hex(),
		Active:          t.Active,
		ModelIdentifier: bigUint(t.ModelIdentifier),
		MinNodes:        bigUint(t.MinNumOfNodes),
		MaxNodes:        bigUint(t.MaxNumOfNodes),
	}
}

func (t taskTuple) toDomain() domain.Task {
	miners := make([]string, len(t.AssignedMiners))
	for i, m := range t.AssignedMiners {
		miners[i] = m.Hex()
	}
	return domain.Task{
		ID:        bigUint(t.Id),
		SessionID: bigUint(t.SessionId),
		GlobalID:  bigUint(t.GlobalId),
		Payload:   t.TaskData,
		Miners:    miners,
		Status:    bigUint(t.Status),
		CreatedAt: unixTime(t.CreatedAt),
		EndedAt:   unixTime(t.EndedAt),
	}
}

func u256(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func unixTime(b *big.Int) time.Time {
	if b == nil || b.Sign() == 0 || !b.IsInt64() {
		return time.Time{}
	}
	return time.Unix(b.Int64(), 0).UTC()
}
