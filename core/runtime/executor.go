package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardcenter/core/events"
	"rewardcenter/core/genesis"
	"rewardcenter/core/state"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/native/token"
	"rewardcenter/storage"
	"rewardcenter/storage/trie"
)

var (
	ErrDuplicateTransaction = errors.New("runtime: transaction already applied")
	ErrUnknownProgram       = errors.New("runtime: unknown program")
	ErrNoGenesis            = errors.New("runtime: empty database and no genesis spec")
)

// Program is a native program the executor dispatches instructions to.
type Program interface {
	ID() crypto.Address
	Process(ctx *types.InvokeContext) error
}

// Metrics receives executor and reward center observations.
type Metrics interface {
	rewardcenter.Metrics
	ObserveTransaction(outcome string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransaction(string, time.Duration)   {}
func (noopMetrics) ObserveSettlement(string, uint64)           {}
func (noopMetrics) ObserveRewardPayout(string, uint64, uint64) {}

// Executor applies transactions one at a time. Every instruction of a
// transaction runs against the trie; the trie is committed when all of them
// succeed and reset to the last committed root otherwise. Events are buffered
// and published to the hub only after commit.
type Executor struct {
	mu       sync.Mutex
	db       storage.Database
	trie     *trie.Trie
	state    *state.Manager
	buffer   *events.Buffer
	hub      *events.Hub
	programs map[crypto.Address]Program

	tokens  *token.Engine
	house   *auctionhouse.Engine
	rewards *rewardcenter.Engine

	metrics Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	nowFn   func() time.Time

	seq    uint64
	txTime int64
}

// Open resumes the ledger stored in db, or builds it from spec when db is
// empty.
func Open(db storage.Database, spec *genesis.GenesisSpec) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("runtime: database must not be nil")
	}
	head, ok, err := LoadHead(db)
	if err != nil {
		return nil, err
	}
	if !ok {
		if spec == nil {
			return nil, ErrNoGenesis
		}
		root, err := genesis.Build(spec, db)
		if err != nil {
			return nil, err
		}
		head = Head{Root: root}
		if err := writeHead(db, head); err != nil {
			return nil, err
		}
	}
	tr, err := trie.NewTrie(db, head.Root.Bytes())
	if err != nil {
		return nil, err
	}
	if err := state.EnsureStateVersion(tr, false); err != nil {
		return nil, err
	}
	return newExecutor(db, tr, head.Seq), nil
}

func newExecutor(db storage.Database, tr *trie.Trie, seq uint64) *Executor {
	e := &Executor{
		db:       db,
		trie:     tr,
		state:    state.NewManager(tr),
		buffer:   &events.Buffer{},
		hub:      events.NewHub(),
		programs: make(map[crypto.Address]Program),
		metrics:  noopMetrics{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("rewardcenter/runtime"),
		nowFn:    time.Now,
		seq:      seq,
	}

	e.tokens = token.NewEngine()
	e.tokens.SetState(e.state)
	e.tokens.SetEmitter(e.buffer)

	e.house = auctionhouse.NewEngine()
	e.house.SetState(e.state)
	e.house.SetTokens(e.tokens)
	e.house.SetEmitter(e.buffer)

	e.rewards = rewardcenter.NewEngine()
	e.rewards.SetState(e.state)
	e.rewards.SetAuctionHouse(e.house)
	e.rewards.SetTokens(e.tokens)
	e.rewards.SetEmitter(e.buffer)
	e.rewards.SetMetrics(e.metrics)
	e.rewards.SetLogger(e.logger)
	e.rewards.SetNowFunc(func() int64 { return e.txTime })

	e.Register(e.tokens)
	e.Register(e.house)
	e.Register(e.rewards)
	return e
}

// Register adds or replaces a program.
func (e *Executor) Register(p Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[p.ID()] = p
}

// SetLogger configures the executor and reward center logger.
func (e *Executor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
	e.rewards.SetLogger(logger.With("program", "rewardcenter"))
}

// SetMetrics configures the metrics sink.
func (e *Executor) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
	e.rewards.SetMetrics(m)
}

// SetNowFunc overrides the clock used to timestamp transactions.
func (e *Executor) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nowFn = now
}

// SetTreasuryReserve forwards the reward treasury reserve to the reward
// center.
func (e *Executor) SetTreasuryReserve(reserve uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rewards.SetTreasuryReserve(reserve)
}

// Hub is the fan-out of committed transactions.
func (e *Executor) Hub() *events.Hub { return e.hub }

// Head returns the last committed root and sequence.
func (e *Executor) Head() Head {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Head{Root: e.trie.Root(), Seq: e.seq}
}

// View runs fn against committed state. fn must not write.
func (e *Executor) View(fn func(st *state.Manager) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// AccountData returns the raw record at addr.
func (e *Executor) AccountData(addr crypto.Address) ([]byte, error) {
	var data []byte
	err := e.View(func(st *state.Manager) error {
		var err error
		data, err = st.AccountData(addr)
		return err
	})
	return data, err
}

// Submit verifies and applies tx. Transactions that fail validation (bad
// signatures, replays) return an error and consume nothing. Transactions that
// fail during execution return a receipt with Success false; their effects
// are discarded.
func (e *Executor) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, span := e.tracer.Start(ctx, "runtime.submit",
		trace.WithAttributes(attribute.Int("tx.instructions", len(tx.Instructions))))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	hash, err := tx.Hash()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("runtime: hash transaction: %w", err)
	}
	span.SetAttributes(attribute.String("tx.hash", common.Hash(hash).Hex()))
	if _, err := tx.VerifySignatures(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveTransaction("rejected", time.Since(start))
		return nil, err
	}
	// Replays are keyed by the signed content, not the signatures.
	digest, err := tx.SigningHash()
	if err != nil {
		return nil, err
	}
	var replayKey [32]byte
	copy(replayKey[:], digest)

	e.mu.Lock()
	defer e.mu.Unlock()

	seen, err := e.state.TxSeen(replayKey)
	if err != nil {
		return nil, err
	}
	if seen {
		e.metrics.ObserveTransaction("rejected", time.Since(start))
		span.SetStatus(codes.Error, ErrDuplicateTransaction.Error())
		return nil, ErrDuplicateTransaction
	}

	e.txTime = e.nowFn().Unix()
	e.buffer.Reset()
	receipt := &types.Receipt{TxHash: hash}
	if execErr := e.execute(tx); execErr != nil {
		e.buffer.Reset()
		if err := e.trie.Rollback(); err != nil {
			return nil, fmt.Errorf("runtime: rollback: %w", err)
		}
		receipt.Seq = e.seq
		receipt.StateRoot = e.trie.Root()
		receipt.Error = receiptError(execErr)
		span.RecordError(execErr)
		span.SetStatus(codes.Error, receipt.Error.Kind)
		e.logger.Info("transaction failed",
			"tx", receipt.TxHashHex(),
			"code", receipt.Error.Code,
			"error", execErr)
		e.metrics.ObserveTransaction("failed", time.Since(start))
		return receipt, nil
	}

	if err := e.state.MarkTxSeen(replayKey); err != nil {
		e.buffer.Reset()
		_ = e.trie.Rollback()
		return nil, err
	}
	next := e.seq + 1
	root, err := e.trie.Commit(next)
	if err != nil {
		e.buffer.Reset()
		_ = e.trie.Rollback()
		return nil, fmt.Errorf("runtime: commit: %w", err)
	}
	committed := events.Committed{TxHash: hash, Seq: next, Events: e.buffer.Events()}
	e.buffer.Reset()
	if err := writeJournal(e.db, committed); err != nil {
		return nil, fmt.Errorf("runtime: journal seq %d: %w", next, err)
	}
	if err := writeHead(e.db, Head{Root: root, Seq: next}); err != nil {
		return nil, fmt.Errorf("runtime: persist head: %w", err)
	}
	e.seq = next
	receipt.Seq = next
	receipt.StateRoot = root
	receipt.Success = true
	receipt.Events = committed.Events
	e.hub.Publish(committed)

	span.SetAttributes(attribute.Int64("tx.seq", int64(next)))
	span.SetStatus(codes.Ok, "committed")
	e.logger.Debug("transaction committed",
		"tx", receipt.TxHashHex(),
		"seq", next,
		"events", len(receipt.Events))
	e.metrics.ObserveTransaction("committed", time.Since(start))
	return receipt, nil
}

func (e *Executor) execute(tx *types.Transaction) error {
	defer e.state.ClearGuard()
	for i, ix := range tx.Instructions {
		program, ok := e.programs[ix.Program]
		if !ok {
			return fmt.Errorf("instruction %d: %w %s", i, ErrUnknownProgram, ix.Program)
		}
		signers := make(crypto.SignerSet)
		for _, meta := range ix.Accounts {
			if meta.Signer {
				signers[meta.Address] = struct{}{}
			}
		}
		e.state.SetGuard(state.NewGuard(ix.Accounts))
		err := program.Process(&types.InvokeContext{
			Signers:   signers,
			Accounts:  ix.Accounts,
			Data:      ix.Data,
			Timestamp: uint64(e.txTime),
			Seq:       e.seq + 1,
		})
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return nil
}
