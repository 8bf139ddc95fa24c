// Package jobs はcron式で定期実行するワーカージョブを管理する。
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc は1回分のジョブ処理。
type JobFunc func(ctx context.Context) error

// Runner は登録したジョブをcron式に従って実行する。
// 前回の実行が終わっていない場合、そのジョブの次の実行はスキップする。
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner はRunnerを生成する。
func NewRunner(logger *slog.Logger) *Runner {
	cl := &cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add はジョブを登録する。specは標準のcron式か "@every 1m" 形式の記述子。
func (r *Runner) Add(name, spec string, fn JobFunc) error {
	_, err := r.cron.AddFunc(spec, func() {
		r.runJob(name, fn)
	})
	if err != nil {
		return fmt.Errorf("ジョブ %s のスケジュール登録に失敗しました: %w", name, err)
	}
	r.logger.Info("ジョブを登録しました",
		slog.String("job", name),
		slog.String("spec", spec),
	)
	return nil
}

// RunNow は登録とは別にジョブを即時1回実行する。起動直後の実行に使う。
func (r *Runner) RunNow(name string, fn JobFunc) {
	r.runJob(name, fn)
}

// Start はスケジューラーをバックグラウンドで開始する。
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop は新しい実行を止め、実行中のジョブの完了を待つ。
// 実行中のジョブには Stop 呼び出し時点でキャンセルを通知する。
func (r *Runner) Stop(ctx context.Context) {
	r.cancel()
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("実行中のジョブの完了を待たずに停止しました")
	}
}

func (r *Runner) runJob(name string, fn JobFunc) {
	start := time.Now()
	if err := fn(r.ctx); err != nil {
		r.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", name),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("ジョブが完了しました",
		slog.String("job", name),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger はcron.Loggerをslogに橋渡しする。
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
