package jobstatus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Registry はバックエンドのジョブレジストリ
type Registry interface {
	ListJobs(ctx context.Context) ([]JobRecord, error)
	SetStatus(ctx context.Context, processID, status string) error
}

// PublishFunc はポーリング結果を受け取ります
// Poller のライフサイクル操作（Stop, Restart）を呼び出してはならない
type PublishFunc func(Snapshot)

// Poller はジョブレジストリを定期的に取得し、正規化した一覧を公開します
// 取得は常に1件のみ実行され、待機は取得完了から計測する
type Poller struct {
	registry   Registry
	logger     *slog.Logger
	publishers []PublishFunc
	now        func() time.Time

	// fetchMu は同時に1件の取得のみを許可する
	fetchMu sync.Mutex

	// lifecycleMu は gen, running, kick と公開処理を保護する
	lifecycleMu sync.Mutex
	gen         uint64
	running     bool
	kick        chan struct{}

	stateMu sync.Mutex
	last    Snapshot
	cycle   int
}

// PollerOption は Poller のオプション
type PollerOption func(*Poller)

// WithPollerLogger はロガーを設定します
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublisher は結果の公開先を追加します
func WithPublisher(fn PublishFunc) PollerOption {
	return func(p *Poller) {
		if fn != nil {
			p.publishers = append(p.publishers, fn)
		}
	}
}

// WithClock は現在時刻の取得関数を差し替えます
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPoller は新しいPollerを作成します
func NewPoller(registry Registry, opts ...PollerOption) *Poller {
	p := &Poller{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollHandle は実行中のポーリングループのハンドル
type PollHandle struct {
	poller *Poller
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop はループを停止します
// Stop が戻った後は新たな取得は行われず、実行中の取得結果も公開されない
func (h *PollHandle) Stop() {
	h.once.Do(func() {
		h.cancel()

		p := h.poller
		p.lifecycleMu.Lock()
		if p.gen == h.gen {
			p.gen++
			p.running = false
		}
		p.lifecycleMu.Unlock()
	})
}

// Done はループ終了時に close されるチャネルを返します
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Start はポーリングループを開始します
func (p *Poller) Start(ctx context.Context, interval time.Duration) (*PollHandle, error) {
	if interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return nil, ErrAlreadyRunning
	}
	p.gen++
	p.running = true
	p.kick = make(chan struct{}, 1)

	loopCtx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		poller: p,
		gen:    p.gen,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.logger.Info("ステータスのポーリングを開始", "interval", interval)
	go p.loop(loopCtx, h, interval, p.kick)

	return h, nil
}

func (p *Poller) loop(ctx context.Context, h *PollHandle, interval time.Duration, kick <-chan struct{}) {
	defer close(h.done)
	defer func() {
		p.lifecycleMu.Lock()
		if p.gen == h.gen {
			p.gen++
			p.running = false
		}
		p.lifecycleMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		p.runCycle(ctx, h.gen)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-kick:
			timer.Stop()
		}
	}
}

// runCycle は1回分の取得を行い、世代が変わっていなければ結果を公開します
func (p *Poller) runCycle(ctx context.Context, gen uint64) {
	p.fetchMu.Lock()
	records, err := p.registry.ListJobs(ctx)
	p.fetchMu.Unlock()

	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.gen != gen || ctx.Err() != nil {
		p.logger.Debug("停止後の取得結果を破棄")
		return
	}
	p.publish(p.apply(records, err))
}

// Refresh はループとは別に1回取得して結果を返します
// 取得に失敗した場合は前回の一覧を Stale として返す
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	p.fetchMu.Lock()
	records, err := p.registry.ListJobs(ctx)
	p.fetchMu.Unlock()

	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	snap := p.apply(records, err)
	p.publish(snap)
	return snap
}

// Restart は指定プロセスの再実行をレジストリに要求します
// 成功した場合はループを起こして即座に再取得させる
func (p *Poller) Restart(ctx context.Context, processID string) error {
	if strings.TrimSpace(processID) == "" {
		return &CommandError{ProcessID: processID, Err: ErrEmptyProcessID}
	}

	if err := p.registry.SetStatus(ctx, processID, StatusRestarted); err != nil {
		p.logger.Warn("ジョブの再実行要求に失敗", "process_id", processID, "error", err)
		return &CommandError{ProcessID: processID, Err: err}
	}
	p.logger.Info("ジョブの再実行を要求", "process_id", processID)

	p.lifecycleMu.Lock()
	if p.running {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	p.lifecycleMu.Unlock()

	return nil
}

// Snapshot は最後に公開した一覧を返します
func (p *Poller) Snapshot() Snapshot {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.last.Clone()
}

func (p *Poller) apply(records []JobRecord, err error) Snapshot {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.cycle++
	if err != nil {
		pollErr := &PollError{Cycle: p.cycle, Err: err}
		p.logger.Warn("ジョブ一覧の取得に失敗、前回の一覧を維持", "error", pollErr)

		p.last.Stale = true
		p.last.LastError = err.Error()
		p.last.Cycle = p.cycle
		return p.last.Clone()
	}

	p.last = Snapshot{
		Jobs:      Reconcile(records),
		FetchedAt: p.now(),
		Cycle:     p.cycle,
	}
	return p.last.Clone()
}

func (p *Poller) publish(snap Snapshot) {
	for _, fn := range p.publishers {
		fn(snap.Clone())
	}
}
