// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultSent    = "sent"
)

// Recorder はメトリクス記録のインターフェース。
// 取り込み・配信・要約の各サービスから利用する。
type Recorder interface {
	RecordIngest(kind, result string, duration time.Duration, newArticles int)
	RecordDispatch(result string, recipients int)
	RecordSummarize(provider, result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestTotal      *prometheus.CounterVec
	ingestLatency    prometheus.Histogram
	articlesIngested prometheus.Counter
	dispatchTotal    *prometheus.CounterVec
	emailsSent       prometheus.Counter
	summarizeTotal   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletterman_ingest_total",
			Help: "フィード取り込みの結果別合計数",
		}, []string{"kind", "result"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsletterman_ingest_latency_seconds",
			Help:    "フィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsletterman_articles_ingested_total",
			Help: "新規に保存された記事の合計数",
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletterman_dispatch_total",
			Help: "ニュースレター送信処理の結果別合計数",
		}, []string{"result"}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsletterman_emails_sent_total",
			Help: "送信に成功したメールの受信者合計数",
		}),
		summarizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletterman_summarize_total",
			Help: "記事要約の方式・結果別合計数",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.ingestTotal,
		c.ingestLatency,
		c.articlesIngested,
		c.dispatchTotal,
		c.emailsSent,
		c.summarizeTotal,
	)

	return c
}

// RecordIngest は1フィード分の取り込み結果を記録する。
func (c *Collector) RecordIngest(kind, result string, duration time.Duration, newArticles int) {
	c.ingestTotal.WithLabelValues(kind, result).Inc()
	c.ingestLatency.Observe(duration.Seconds())
	if newArticles > 0 {
		c.articlesIngested.Add(float64(newArticles))
	}
}

// RecordDispatch は1件のニュースレター送信処理の結果を記録する。
func (c *Collector) RecordDispatch(result string, recipients int) {
	c.dispatchTotal.WithLabelValues(result).Inc()
	if result == ResultSent {
		c.emailsSent.Add(float64(recipients))
	}
}

// RecordSummarize は1記事分の要約結果を記録する。
func (c *Collector) RecordSummarize(provider, result string) {
	c.summarizeTotal.WithLabelValues(provider, result).Inc()
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordIngest(string, string, time.Duration, int) {}
func (Nop) RecordDispatch(string, int)                      {}
func (Nop) RecordSummarize(string, string)                  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
