// Package engine resolves one inbound customer message into one reply. It
// walks a configurable stage pipeline (FAQ → paint pricing → catalog →
// generative fallback) and short-circuits at the first stage that produces a
// body; the daily greeting only decorates the result.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hrlight/shopbot/internal/knowledge"
	"github.com/hrlight/shopbot/internal/llm"
	"github.com/hrlight/shopbot/internal/matcher"
	"github.com/hrlight/shopbot/internal/session"
)

const (
	StageFAQ      = "faq"
	StagePricing  = "pricing"
	StageCatalog  = "catalog"
	StageFallback = "fallback"
)

const (
	replyImageAck    = "收到您的圖片了！想詢問圖片中的商品嗎？跟我說說您的問題喔～"
	replyImageFail   = "不好意思，圖片處理失敗了，可以再傳一次給我嗎？"
	replyApology     = "不好意思，系統現在有點忙碌，請稍後再試一次喔！"
	replyUnsupported = "不好意思，我目前只看得懂文字和圖片訊息喔！"
	replyReminder    = "有希望什麼時候安裝嗎？可以為您查詢貨況喔！"
	replyClarify     = "請問您想詢問的是哪一項呢？"
)

const (
	columnKeyword  = "關鍵字"
	columnAnswer   = "回覆"
	columnName     = "品名"
	columnPrice    = "價格"
	columnVehicle  = "車款"
	columnItem     = "項目"
	columnColor    = "顏色"
	columnCategory = "分類"

	itemBasePaint        = "基本烤漆"
	itemSpecialSurcharge = "特殊色加價"
	categorySpecial      = "特殊色"
)

type Config struct {
	Stages         []string
	Greeting       string
	Persona        string
	FAQSheet       string
	PaintSheet     string
	ColorSheet     string
	ProductSheet   string
	RatioThreshold float64
	Ratio          matcher.RatioFunc
}

type Inbound struct {
	UserID string
	Text   string
	Image  []byte
}

// Reply is the ordered list of outbound text segments for one inbound
// message. The greeting, when present, is always the first segment.
type Reply struct {
	Segments []string
}

func (r Reply) Text() string {
	return strings.Join(r.Segments, "\n")
}

type stageFunc func(ctx context.Context, turn *turnState) (string, error)

type turnState struct {
	userID       string
	text         string
	imageContext string
}

type Engine struct {
	cfg       Config
	store     knowledge.Store
	sessions  *session.Service
	completer llm.Completer
	logger    *slog.Logger
	stages    []string
	resolvers map[string]stageFunc
	now       func() time.Time
}

func New(cfg Config, store knowledge.Store, sessions *session.Service, completer llm.Completer, logger *slog.Logger) *Engine {
	if len(cfg.Stages) == 0 {
		cfg.Stages = []string{StageFAQ, StagePricing, StageCatalog, StageFallback}
	}
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = defaultPersona
	}
	if cfg.FAQSheet == "" {
		cfg.FAQSheet = "faq"
	}
	if cfg.PaintSheet == "" {
		cfg.PaintSheet = "paint"
	}
	if cfg.ColorSheet == "" {
		cfg.ColorSheet = "colors"
	}
	if cfg.ProductSheet == "" {
		cfg.ProductSheet = "products"
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
	e.resolvers = map[string]stageFunc{
		StageFAQ:      e.resolveFAQ,
		StagePricing:  e.resolvePricing,
		StageCatalog:  e.resolveCatalog,
		StageFallback: e.resolveFallback,
	}
	for _, tag := range cfg.Stages {
		if _, ok := e.resolvers[tag]; !ok {
			logger.Warn("unknown pipeline stage ignored", "stage", tag)
			continue
		}
		e.stages = append(e.stages, tag)
	}
	return e
}

// HandleText resolves a text message. It never fails: external errors degrade
// to the apology reply so the conversation is never left without an answer.
func (e *Engine) HandleText(ctx context.Context, msg Inbound) Reply {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Reply{Segments: []string{replyUnsupported}}
	}

	greet := e.sessions.ShouldGreet(msg.UserID, e.now())
	turn := &turnState{userID: msg.UserID, text: text}

	body := ""
	for _, tag := range e.stages {
		result, err := e.resolvers[tag](ctx, turn)
		if err != nil {
			if errors.Is(err, knowledge.ErrUnavailable) {
				e.logger.Warn("stage skipped, knowledge unavailable", "stage", tag)
			} else {
				e.logger.Error("stage failed", "stage", tag, "error", err)
			}
			continue
		}
		if result != "" {
			body = result
			break
		}
	}
	if body == "" {
		body = replyApology
	}

	reply := Reply{}
	if greet && strings.TrimSpace(e.cfg.Greeting) != "" {
		reply.Segments = append(reply.Segments, e.cfg.Greeting)
	}
	reply.Segments = append(reply.Segments, body)
	return reply
}

// HandleImage never answers an image directly: it derives a description via
// the vision capability, parks it as pending context for the user's next text
// message, and acknowledges.
func (e *Engine) HandleImage(ctx context.Context, msg Inbound) Reply {
	if len(msg.Image) == 0 {
		return Reply{Segments: []string{replyImageFail}}
	}

	description, err := e.completer.CompleteImage(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: visionPrompt},
	}, msg.Image)
	if err != nil || strings.TrimSpace(description) == "" {
		if err != nil {
			e.logger.Warn("image description failed", "error", err)
		}
		return Reply{Segments: []string{replyImageFail}}
	}

	e.sessions.StorePendingImage(msg.UserID, description)
	return Reply{Segments: []string{replyImageAck}}
}

// HandleUnsupported answers message kinds the bot cannot process.
func (e *Engine) HandleUnsupported(msg Inbound) Reply {
	return Reply{Segments: []string{replyUnsupported}}
}
