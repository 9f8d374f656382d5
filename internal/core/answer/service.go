package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// 利用者へ返す固定文言です。
const (
	NotConfiguredText = "Fitur AI (Gemini) belum dikonfigurasi."
	NoReferenceText   = "Maaf, data referensi tidak tersedia saat ini."
	FailureText       = "Maaf, terjadi kesalahan pada sistem AI."
	EmptyAnswerText   = "Maaf, saya tidak bisa menjawab pertanyaan Anda."
	NotFoundText      = "Maaf, saya tidak dapat menemukan informasi tersebut dalam dokumen."
)

// DefaultTimeout は生成 AI 呼び出しの既定の待ち時間です。
const DefaultTimeout = 20 * time.Second

// Model は生成 AI の外部協調者です。
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Corpus は事前に抽出済みの参照文書テキストです。
type Corpus interface {
	Text() string
}

// Answerer は自由文の質問に回答します。常に利用者へ返せる文字列を返します。
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// Options は回答サービスの設定です。
type Options struct {
	Organization string
	Timeout      time.Duration
}

// Service は参照文書に基づく回答を生成します。失敗時は定型の謝罪文を返します。
type Service struct {
	model  Model
	corpus Corpus
	opts   Options
	logger *slog.Logger
}

// NewService は Service を生成します。model が nil の場合はすべての質問に未設定の文言を返します。
func NewService(model Model, corpus Corpus, opts Options, logger *slog.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.Organization) == "" {
		opts.Organization = "perusahaan"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		model:  model,
		corpus: corpus,
		opts:   opts,
		logger: logger.With(slog.String("component", "answer")),
	}
}

// Configured は生成 AI が設定されているかを返します。
func (s *Service) Configured() bool {
	return s.model != nil
}

// Answer は question に回答します。
func (s *Service) Answer(ctx context.Context, question string) string {
	if s.model == nil {
		return NotConfiguredText
	}

	text := ""
	if s.corpus != nil {
		text = strings.TrimSpace(s.corpus.Text())
	}
	if text == "" {
		s.logger.Error("reference corpus is empty")
		return NoReferenceText
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.model.Generate(ctx, BuildPrompt(s.opts.Organization, text, question))
	if err != nil {
		s.logger.Error("generate failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		return FailureText
	}
	s.logger.Info("answer generated", slog.Duration("elapsed", time.Since(start)))

	if strings.TrimSpace(reply) == "" {
		return EmptyAnswerText
	}
	return reply
}

// BuildPrompt は参照文書と質問から生成 AI への指示文を組み立てます。
func BuildPrompt(organization, corpus, question string) string {
	return fmt.Sprintf(`Anda adalah asisten AI untuk %s. Jawab pertanyaan berikut secara akurat dan hanya berdasarkan dokumen yang disediakan. Jika jawaban tidak ada di dalam dokumen, katakan "%s"

Dokumen:
%s

Pertanyaan: %s`, organization, NotFoundText, corpus, strings.TrimSpace(question))
}

// StaticCorpus は固定文字列の Corpus です。
type StaticCorpus string

// Text は文字列をそのまま返します。
func (c StaticCorpus) Text() string {
	return string(c)
}
