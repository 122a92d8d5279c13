package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"unirag/internal/domain"
	"unirag/internal/port"
)

// State is a step of answering one question.
type State int

const (
	StateIdle State = iota
	StateRetrieving
	StateFetching
	StateAssembling
	StateCallingLLM
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRetrieving:
		return "retrieving"
	case StateFetching:
		return "fetching"
	case StateAssembling:
		return "assembling"
	case StateCallingLLM:
		return "calling_llm"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// AnswerOptions configures the answer service.
type AnswerOptions struct {
	LiveURLs     []string
	TopK         int // k used when a request leaves it unset; 0 means DefaultTopK
	PackBudget   int
	Model        string
	Temperature  float64
	MaxTokens    int
	LLMTimeout   time.Duration
	SystemPrompt string // empty uses the built-in prompt
	Apology      string
}

// AnswerRequest is one inbound question.
type AnswerRequest struct {
	Query string
	K     int // 0 means AnswerOptions.TopK
}

// Answer is the outcome of one request. Text is never empty.
type Answer struct {
	Text    string
	State   State
	Trace   []State
	Offline []domain.ScoredChunk
	Live    []domain.LiveDocument
	Context domain.AssembledContext
	Prompt  []domain.Message
}

// AnswerService retrieves offline context and fetches live pages
// concurrently, assembles a bounded prompt and asks the LLM once.
type AnswerService struct {
	retrieve *RetrieveUseCase
	fetcher  port.LiveFetcher
	packer   port.Packer
	llm      port.LLM
	opts     AnswerOptions
	logger   *slog.Logger
}

// NewAnswerService creates a new answer service. fetcher and llm may be nil:
// a nil fetcher means offline-only context, a nil LLM always degrades.
func NewAnswerService(
	retrieve *RetrieveUseCase,
	fetcher port.LiveFetcher,
	packer port.Packer,
	llm port.LLM,
	opts AnswerOptions,
	logger *slog.Logger,
) *AnswerService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Apology == "" {
		opts.Apology = "Sorry, I could not find an answer right now. Please try again later."
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		retrieve: retrieve,
		fetcher:  fetcher,
		packer:   packer,
		llm:      llm,
		opts:     opts,
		logger:   logger,
	}
}

func validate(req *AnswerRequest, defaultK int) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("%w: query is required", domain.ErrClientInput)
	}
	if req.K < 0 {
		return fmt.Errorf("%w: k must be positive", domain.ErrClientInput)
	}
	if req.K == 0 {
		req.K = defaultK
	}
	return nil
}

// Prepare runs every step up to and including prompt assembly. The only
// error it returns is domain.ErrClientInput.
func (s *AnswerService) Prepare(ctx context.Context, req AnswerRequest) (*Answer, error) {
	if err := validate(&req, s.opts.TopK); err != nil {
		return nil, err
	}

	ans := &Answer{State: StateIdle, Trace: []State{StateIdle}}
	s.transition(ans, StateRetrieving)
	s.transition(ans, StateFetching)

	// Both branches absorb their own failures, so the group never errors.
	var g errgroup.Group
	g.Go(func() error {
		offline, err := s.retrieve.Retrieve(ctx, req.Query, req.K)
		if err != nil {
			s.logger.Warn("offline retrieval failed", "strategy", s.retrieve.Strategy(), "error", err)
			return nil
		}
		ans.Offline = offline
		return nil
	})
	g.Go(func() error {
		if s.fetcher == nil || len(s.opts.LiveURLs) == 0 {
			return nil
		}
		ans.Live = s.fetcher.Fetch(ctx, s.opts.LiveURLs)
		return nil
	})
	_ = g.Wait()

	s.transition(ans, StateAssembling)
	ans.Context = s.packer.Assemble(ans.Offline, ans.Live, s.opts.PackBudget)

	user, err := RenderUserPrompt(req.Query, ans.Context)
	if err != nil {
		s.logger.Error("prompt rendering failed", "error", err)
		user = req.Query
	}
	ans.Prompt = []domain.Message{
		{Role: "system", Content: s.opts.SystemPrompt},
		{Role: "user", Content: user},
	}

	s.logger.Debug("context assembled",
		"offline_chunks", len(ans.Offline),
		"live_documents", len(ans.Live),
		"offline_truncated", ans.Context.OfflineTruncated,
		"live_truncated", ans.Context.LiveTruncated,
	)
	return ans, nil
}

// Answer answers one question. Every failure past input validation degrades
// to the configured apology; the underlying error is logged.
func (s *AnswerService) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	ans, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	s.transition(ans, StateCallingLLM)
	text, err := s.complete(ctx, ans.Prompt)
	if err != nil {
		s.logger.Error("llm call failed", "error", err, "model", s.opts.Model)
		ans.Text = s.opts.Apology
		s.transition(ans, StateFailed)
		return ans, nil
	}

	ans.Text = text
	s.transition(ans, StateDone)
	return ans, nil
}

func (s *AnswerService) complete(ctx context.Context, messages []domain.Message) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("%w: no LLM configured", domain.ErrLLMTransport)
	}

	if s.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.LLMTimeout)
		defer cancel()
	}

	text, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    messages,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrLLMMalformedResponse)
	}
	return text, nil
}

func (s *AnswerService) transition(ans *Answer, next State) {
	s.logger.Debug("answer state", "from", ans.State.String(), "to", next.String())
	ans.State = next
	ans.Trace = append(ans.Trace, next)
}
