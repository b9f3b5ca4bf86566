package test

import (
	"context"
	"math/big"
	"sync"

	"github/chapool/go-custody/internal/wallet/chain"
	"github/chapool/go-custody/internal/wallet/signer"
	"github/chapool/go-custody/internal/wallet/sweep"
)

// Executor sweeps the full deposit amount and reports every transaction it sent as mined.
// Transactions it never sent are not found.
type Executor struct {
	mu   sync.Mutex
	jobs []sweep.Job
	sent map[string]bool

	// Fail makes every transaction revert.
	Fail bool
}

var _ sweep.Executor = (*Executor)(nil)

func (e *Executor) Factory(chain.Client, signer.Service, sweep.Config) (sweep.Executor, error) {
	return e, nil
}

func (e *Executor) Submit(ctx context.Context, job *sweep.Job) (*sweep.Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.jobs = append(e.jobs, *job)

	fee := big.NewInt(100)
	if job.PriorFee != nil {
		fee = sweep.ChooseFee(job.PriorFee, job.Option, fee, sweep.DefaultFeeBumpPercent)
	}

	sub := &sweep.Submission{
		TxHash: "0xsweep" + job.Sweep.ID,
		Amount: job.Deposit.Amount.BigInt(),
		Fee:    fee,
	}
	if err := job.Signed(ctx, sub); err != nil {
		return nil, err
	}

	if e.sent == nil {
		e.sent = map[string]bool{}
	}
	e.sent[sub.TxHash] = true

	return sub, nil
}

func (e *Executor) Outcome(_ context.Context, txHash string) (bool, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sent[txHash] {
		return false, false, nil
	}
	return true, !e.Fail, nil
}

func (e *Executor) Jobs() []sweep.Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]sweep.Job(nil), e.jobs...)
}
