package auctionhouse

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// txOp is one staged statement of a settlement transaction.
type txOp func(ctx context.Context, tx bun.Tx) error

// AuctionTransaction batches every statement of one mutating operation:
// posting add/remove, bid history, pending-deposit bookkeeping and mail
// drafts. Once submitted it must not be touched again by the engine.
type AuctionTransaction struct {
	ops []txOp
}

func (t *AuctionTransaction) Append(op txOp) {
	t.ops = append(t.ops, op)
}

func (t *AuctionTransaction) empty() bool {
	return len(t.ops) == 0
}

// Settler is the settlement boundary the engine talks to. The production
// implementation is SettlementPipeline; tests substitute a synchronous fake.
type Settler interface {
	Tx() *AuctionTransaction
	// Submit hands the transaction to asynchronous storage. The optional
	// continuation runs on a later Update tick, after the commit outcome is
	// known, and only if the actor's session identity still matches the one
	// captured here. actor 0 means a system action with no identity check.
	Submit(t *AuctionTransaction, actor snowflake.ID, done func(committed bool))
	// Commit runs the transaction synchronously, for non-deferred paths.
	Commit(ctx context.Context, t *AuctionTransaction) error
}

// TxRunner is the slice of bun.DB the pipeline needs.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

type commitJob struct {
	t     *AuctionTransaction
	actor snowflake.ID
	token uint64
	done  func(committed bool)
	err   error
}

// SettlementPipeline commits transactions on a small worker pool and posts
// completions back to the game loop, which drains them via Update.
//
// The engine mutates its in-memory state before submitting (optimistic
// mutate-then-commit). A failed commit is reported as ResultDatabaseError by
// the continuation but the memory mutation is not rolled back; the divergence
// is logged instead. This mirrors the behavior the engine was ported from.
type SettlementPipeline struct {
	db        TxRunner
	directory OnlineDirectory
	jobs      chan *commitJob
	completed chan *commitJob
	group     *errgroup.Group
	timeout   time.Duration
}

func NewSettlementPipeline(db TxRunner, directory OnlineDirectory, workers int) *SettlementPipeline {
	if workers <= 0 {
		workers = 1
	}
	p := &SettlementPipeline{
		db:        db,
		directory: directory,
		jobs:      make(chan *commitJob, 256),
		completed: make(chan *commitJob, 256),
		group:     new(errgroup.Group),
		timeout:   30 * time.Second,
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}
	return p
}

func (p *SettlementPipeline) Tx() *AuctionTransaction {
	return &AuctionTransaction{}
}

func (p *SettlementPipeline) Submit(t *AuctionTransaction, actor snowflake.ID, done func(committed bool)) {
	var token uint64
	if actor != 0 && p.directory != nil {
		token, _ = p.directory.Session(actor)
	}
	p.jobs <- &commitJob{t: t, actor: actor, token: token, done: done}
}

// Commit runs all staged statements in one serializable transaction.
func (p *SettlementPipeline) Commit(ctx context.Context, t *AuctionTransaction) error {
	if t.empty() || p.db == nil {
		return nil
	}
	return p.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		for _, op := range t.ops {
			if err := op(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *SettlementPipeline) worker() error {
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		job.err = p.Commit(ctx, job.t)
		cancel()
		p.completed <- job
	}
	return nil
}

// Update delivers pending completions on the game-loop thread. Continuations
// of actors who logged out or were replaced since submission are dropped.
func (p *SettlementPipeline) Update() {
	for {
		select {
		case job := <-p.completed:
			p.finish(job)
		default:
			return
		}
	}
}

func (p *SettlementPipeline) finish(job *commitJob) {
	if job.err != nil {
		slog.Error("Settlement transaction failed to commit; in-memory state may have diverged",
			slog.String("actor", job.actor.String()),
			slog.String("error", job.err.Error()))
	}
	if job.done == nil {
		return
	}
	if job.actor != 0 && p.directory != nil {
		token, online := p.directory.Session(job.actor)
		if !online || token != job.token {
			return
		}
	}
	job.done(job.err == nil)
}

// Shutdown stops accepting work, waits for in-flight commits and drains the
// completion queue without running continuations.
func (p *SettlementPipeline) Shutdown(ctx context.Context) error {
	close(p.jobs)

	waited := make(chan error, 1)
	go func() { waited <- p.group.Wait() }()

	select {
	case err := <-waited:
		for {
			select {
			case job := <-p.completed:
				if job.err != nil {
					slog.Error("Settlement transaction failed during shutdown",
						slog.String("error", job.err.Error()))
				}
			default:
				return err
			}
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
