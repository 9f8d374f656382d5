package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/answer"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/phone"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Directory は送信者の電話番号から社員を引き当てます。
type Directory interface {
	FindEmployeeByPhone(ctx context.Context, raw string) (*attendance.Employee, error)
}

// GreetingTracker は当日の挨拶済み判定と記録を同時に行います。
type GreetingTracker interface {
	CheckAndMarkGreeted(ctx context.Context, key string, now time.Time) (bool, error)
}

// ReplyLedger はメッセージ ID 単位の返信済み台帳です。
type ReplyLedger interface {
	Seen(messageID string) bool
	Claim(messageID string) (bool, error)
}

// Replier は受信メッセージへの返信を送る外部協調者です。
type Replier interface {
	Reply(ctx context.Context, msg InboundMessage, text string) error
}

// Router は受信メッセージを分類し、メッセージごとに一つだけ返信を選びます。
type Router struct {
	directory Directory
	greetings GreetingTracker
	replies   ReplyLedger
	answerer  answer.Answerer
	commands  *Registry
	replier   Replier
	clock     Clock
	loc       *time.Location
	logger    *slog.Logger
}

// Deps は Router の依存関係です。
type Deps struct {
	Directory Directory
	Greetings GreetingTracker
	Replies   ReplyLedger
	Answerer  answer.Answerer
	Commands  *Registry
	Replier   Replier
	Clock     Clock
	// Location は挨拶日と月次照会の暦を決めるタイムゾーンです。nil の場合は Clock の値をそのまま使います。
	Location  *time.Location
	Logger    *slog.Logger
}

// NewRouter は Router を生成します。
func NewRouter(d Deps) *Router {
	if d.Clock == nil {
		d.Clock = realClock{}
	}
	if d.Commands == nil {
		d.Commands = NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Router{
		directory: d.Directory,
		greetings: d.Greetings,
		replies:   d.Replies,
		answerer:  d.Answerer,
		commands:  d.Commands,
		replier:   d.Replier,
		clock:     d.Clock,
		loc:       d.Location,
		logger:    d.Logger.With(slog.String("component", "router")),
	}
}

// Handle はメッセージを分類し、必要なら返信を送信します。返信は再試行しません。
func (r *Router) Handle(ctx context.Context, msg InboundMessage) error {
	start := time.Now()
	action := r.Route(ctx, msg)

	logger := r.logger.With(slog.String("message_id", msg.ID), slog.String("route", string(action.Route)))
	if action.Dropped() {
		logger.Debug("message dropped")
		return nil
	}

	if r.replier == nil {
		return errors.New("chat: replier is not configured")
	}
	if err := r.replier.Reply(ctx, msg, action.Reply); err != nil {
		logger.Error("reply failed", slog.Any("error", err))
		return err
	}
	logger.Info("message handled", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Route は規則を順に評価し、最初に一致した規則の処理結果を返します。
// 返信する経路ではメッセージ ID を先に返信済みとして記録し、同じ ID の再配信は処理中でも重複として扱います。
func (r *Router) Route(ctx context.Context, msg InboundMessage) Action {
	if r.replies != nil && r.replies.Seen(msg.ID) {
		return Action{Route: RouteDuplicate}
	}
	if msg.fromGroup() {
		return Action{Route: RouteGroup}
	}
	if msg.IsFromMe {
		return Action{Route: RouteSelf}
	}

	if r.replies != nil {
		claimed, err := r.replies.Claim(msg.ID)
		if err != nil {
			r.logger.Error("reply ledger persist failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
		if !claimed {
			return Action{Route: RouteDuplicate}
		}
	}
	return r.decide(ctx, msg)
}

func (r *Router) now() time.Time {
	now := r.clock.Now()
	if r.loc != nil {
		return now.In(r.loc)
	}
	return now
}

func (r *Router) decide(ctx context.Context, msg InboundMessage) Action {
	now := r.now()

	emp := r.lookup(ctx, msg.From)
	if emp == nil {
		if msg.hasQuestion() {
			return Action{Route: RouteUnregisteredAnswer, Reply: r.answer(ctx, msg.text())}
		}
		return Action{Route: RouteUnregistered, Reply: NotRegisteredText}
	}

	if !r.alreadyGreeted(ctx, msg.From, now) {
		return Action{Route: RouteGreeting, Reply: FormatGreeting(*emp, r.commands.Menu())}
	}

	if cmd, ok := r.commands.Lookup(msg.text()); ok {
		return Action{Route: RouteCommand, Reply: cmd.Run(ctx, *emp, now), Command: cmd.Token()}
	}

	if msg.hasQuestion() {
		return Action{Route: RouteAnswer, Reply: r.answer(ctx, msg.text())}
	}
	return Action{Route: RouteNotFound, Reply: answer.NotFoundText}
}

func (r *Router) lookup(ctx context.Context, from string) *attendance.Employee {
	if r.directory == nil {
		return nil
	}
	emp, err := r.directory.FindEmployeeByPhone(ctx, from)
	if err != nil {
		if !errors.Is(err, attendance.ErrEmployeeNotFound) {
			r.logger.Error("employee lookup failed", slog.String("from", from), slog.Any("error", err))
		}
		return nil
	}
	return emp
}

// alreadyGreeted は判定に失敗した場合は未挨拶として扱います。
func (r *Router) alreadyGreeted(ctx context.Context, from string, now time.Time) bool {
	if r.greetings == nil {
		return true
	}
	greeted, err := r.greetings.CheckAndMarkGreeted(ctx, phone.Normalize(from).Plain, now)
	if err != nil {
		r.logger.Error("greeting check failed", slog.String("from", from), slog.Any("error", err))
		return false
	}
	return greeted
}

func (r *Router) answer(ctx context.Context, question string) string {
	if r.answerer == nil {
		return answer.NotConfiguredText
	}
	return r.answerer.Answer(ctx, question)
}
