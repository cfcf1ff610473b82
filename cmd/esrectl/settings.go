package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
	domproject "github.com/kailas-cloud/esre-console/internal/domain/project"
	logpkg "github.com/kailas-cloud/esre-console/internal/logger"
	displayrepo "github.com/kailas-cloud/esre-console/internal/repository/display"
	"github.com/kailas-cloud/esre-console/internal/transport/esre"
	openaiJudge "github.com/kailas-cloud/esre-console/internal/transport/openai"
	aijudgeuc "github.com/kailas-cloud/esre-console/internal/usecase/aijudge"
	judgementuc "github.com/kailas-cloud/esre-console/internal/usecase/judgement"
	projectuc "github.com/kailas-cloud/esre-console/internal/usecase/project"
	usageuc "github.com/kailas-cloud/esre-console/internal/usecase/usage"
)

const envPrefix = "ESRE"

// settings are read from ESRE_* environment variables.
type settings struct {
	BackendURL string `envconfig:"BACKEND_URL" required:"true"`
	APIKey     string `envconfig:"API_KEY"`
	TimeoutMS  int    `envconfig:"TIMEOUT_MS" default:"4000"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"warn"`

	JudgeAPIKey      string  `envconfig:"JUDGE_API_KEY"`
	JudgeBaseURL     string  `envconfig:"JUDGE_BASE_URL"`
	JudgeModel       string  `envconfig:"JUDGE_MODEL" default:"gpt-4o-mini"`
	JudgeRatePerSec  float64 `envconfig:"JUDGE_RATE_PER_SEC" default:"2"`
	JudgeConcurrency int     `envconfig:"JUDGE_CONCURRENCY" default:"4"`
	JudgeTokenLimit  int64   `envconfig:"JUDGE_TOKEN_LIMIT"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return settings{}, fmt.Errorf("read %s_* environment: %w", envPrefix, err)
	}
	return s, nil
}

// app wires the backend client and use cases for one command run.
type app struct {
	client     *esre.Client
	displays   *displayrepo.Repo
	projects   *projectuc.Service
	judgements *judgementuc.Service
	settings   settings
	logger     *zap.Logger
}

func newApp() (*app, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger, err := logpkg.NewLogger("dev", s.LogLevel)
	if err != nil {
		return nil, err
	}

	client, err := esre.New(esre.Config{
		BaseURL: s.BackendURL,
		APIKey:  s.APIKey,
		Timeout: time.Duration(s.TimeoutMS) * time.Millisecond,
	}, esre.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	displays := displayrepo.New(client, nil, 0, "", nil, logger)
	projects := projectuc.New(projectuc.Backend{
		Projects: client.Projects(),
		Scenarios: func(projectID string) projectuc.Records[domproject.Scenario] {
			return client.Scenarios(projectID)
		},
		Strategies: func(projectID string) projectuc.Records[domproject.Strategy] {
			return client.Strategies(projectID)
		},
		Displays: func(projectID string) projectuc.Records[domdisplay.Display] {
			return client.Displays(projectID)
		},
		Evaluations: func(projectID string) projectuc.Records[domproject.Evaluation] {
			return client.Evaluations(projectID)
		},
		Runner: client,
	}, displays)

	return &app{
		client:     client,
		displays:   displays,
		projects:   projects,
		judgements: judgementuc.New(client, projects, displays, nil, logger),
		settings:   s,
		logger:     logger,
	}, nil
}

// judge builds the AI judge service; without ESRE_JUDGE_API_KEY it stays disabled.
// ESRE_JUDGE_TOKEN_LIMIT caps the tokens one invocation may spend.
func (a *app) judge() *aijudgeuc.Service {
	var (
		j      aijudgeuc.Judge
		budget aijudgeuc.Budget
	)
	if a.settings.JudgeTokenLimit > 0 {
		budget = usageuc.NewTracker(a.settings.JudgeModel, "", usageuc.Limits{
			Daily:  a.settings.JudgeTokenLimit,
			Action: usageuc.ActionReject,
		}, a.logger)
	}
	if a.settings.JudgeAPIKey != "" {
		j = openaiJudge.NewJudge(&openaiJudge.Config{
			APIKey:  a.settings.JudgeAPIKey,
			BaseURL: a.settings.JudgeBaseURL,
			Model:   a.settings.JudgeModel,
			Logger:  a.logger,
		})
	}
	return aijudgeuc.New(j, a.client, a.projects, a.projects.Scenarios(), a.displays, aijudgeuc.Options{
		RatePerSec:  a.settings.JudgeRatePerSec,
		Concurrency: a.settings.JudgeConcurrency,
		Budget:      budget,
		Ratings:     a.judgements,
	}, a.logger)
}
