// Package server exposes a read-only HTTP API over the workspace
// certification state: fleet dashboard summaries, lifecycle records and
// events, and run history. All writes go through the CLI; the API only
// reports.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"certline/internal/config"
	"certline/internal/repo"
	"certline/pkg/certify"
	"certline/pkg/dashboard"
	"certline/pkg/history"
	"certline/pkg/lifecycle"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	App      *config.Config
	History  *history.Store
	BasePath string
	Auth     AuthConfig
	Logger   zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"record not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, lifecycle.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

// New returns an HTTP handler exposing the Certline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Certline API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerFleet(group, cfg)
	registerLifecycle(group, cfg)
	registerHistory(group, cfg)

	return router, nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerFleet(api huma.API, cfg Config) {
	loadDashboard := func(ctx context.Context) (*dashboard.Dashboard, error) {
		return cfg.Repo.LoadDashboard(ctx, cfg.App.Org.Name)
	}

	huma.Register(api, huma.Operation{
		OperationID: "fleet-summary",
		Method:      http.MethodGet,
		Path:        "/fleet/summary",
		Summary:     "Fleet certification summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body dashboard.Summary `json:"body"`
	}, error) {
		d, err := loadDashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dashboard.Summary `json:"body"`
		}{Body: d.GenerateSummary(time.Time{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-fleet-agents",
		Method:      http.MethodGet,
		Path:        "/fleet/agents",
		Summary:     "List fleet agents",
	}, func(ctx context.Context, input *struct {
		Level string `query:"level" doc:"Filter by certification level"`
	}) (*struct {
		Body []dashboard.AgentStatus `json:"body"`
	}, error) {
		if input.Level != "" {
			d, err := loadDashboard(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			agents := d.AgentsByLevel(certify.Level(input.Level))
			if agents == nil {
				agents = []dashboard.AgentStatus{}
			}
			return &struct {
				Body []dashboard.AgentStatus `json:"body"`
			}{Body: agents}, nil
		}
		agents, err := cfg.Repo.ListFleetAgents(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if agents == nil {
			agents = []dashboard.AgentStatus{}
		}
		return &struct {
			Body []dashboard.AgentStatus `json:"body"`
		}{Body: agents}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-fleet-agent",
		Method:      http.MethodGet,
		Path:        "/fleet/agents/{agent_id}",
		Summary:     "Get a fleet agent",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AgentID string `path:"agent_id"`
	}) (*struct {
		Body dashboard.AgentStatus `json:"body"`
	}, error) {
		d, err := loadDashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		status, ok := d.Agent(input.AgentID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "agent not registered", nil)
		}
		return &struct {
			Body dashboard.AgentStatus `json:"body"`
		}{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fleet-expiring",
		Method:      http.MethodGet,
		Path:        "/fleet/expiring",
		Summary:     "Agents with certifications expiring soon",
	}, func(ctx context.Context, input *struct {
		Days int `query:"days" default:"30" minimum:"1" doc:"Window in days"`
	}) (*struct {
		Body []dashboard.AgentStatus `json:"body"`
	}, error) {
		d, err := loadDashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		days := input.Days
		if days <= 0 {
			days = 30
		}
		agents := d.AgentsExpiringWithin(days)
		if agents == nil {
			agents = []dashboard.AgentStatus{}
		}
		return &struct {
			Body []dashboard.AgentStatus `json:"body"`
		}{Body: agents}, nil
	})
}

func registerLifecycle(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cert-records",
		Method:      http.MethodGet,
		Path:        "/lifecycle/records",
		Summary:     "List certification records",
	}, func(ctx context.Context, input *struct {
		AgentID string `query:"agent_id" doc:"Filter by agent id"`
	}) (*struct {
		Body []lifecycle.Record `json:"body"`
	}, error) {
		records, err := cfg.Repo.ListRecords(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]lifecycle.Record, 0, len(records))
		for _, rec := range records {
			if input.AgentID != "" && rec.AgentID != input.AgentID {
				continue
			}
			out = append(out, rec)
		}
		return &struct {
			Body []lifecycle.Record `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cert-record",
		Method:      http.MethodGet,
		Path:        "/lifecycle/records/{record_id}",
		Summary:     "Get a certification record",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RecordID string `path:"record_id"`
	}) (*struct {
		Body lifecycle.Record `json:"body"`
	}, error) {
		rec, err := cfg.Repo.GetRecord(ctx, input.RecordID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.Record `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cert-record-events",
		Method:      http.MethodGet,
		Path:        "/lifecycle/records/{record_id}/events",
		Summary:     "Get a record's lifecycle history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RecordID string `path:"record_id"`
	}) (*struct {
		Body []lifecycle.Event `json:"body"`
	}, error) {
		if _, err := cfg.Repo.GetRecord(ctx, input.RecordID); err != nil {
			return nil, handleError(err)
		}
		events, err := cfg.Repo.ListEvents(ctx, input.RecordID)
		if err != nil {
			return nil, handleError(err)
		}
		if events == nil {
			events = []lifecycle.Event{}
		}
		return &struct {
			Body []lifecycle.Event `json:"body"`
		}{Body: events}, nil
	})
}

func registerHistory(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-history",
		Method:      http.MethodGet,
		Path:        "/history/entries",
		Summary:     "List assessment history entries",
	}, func(ctx context.Context, input *struct {
		Implementation string `query:"implementation" doc:"Filter by implementation name"`
	}) (*struct {
		Body []history.Entry `json:"body"`
	}, error) {
		var (
			entries []history.Entry
			err     error
		)
		if input.Implementation != "" {
			entries, err = cfg.History.ForImplementation(input.Implementation)
		} else {
			entries, err = cfg.History.LoadAll()
		}
		if err != nil {
			return nil, handleError(err)
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		return &struct {
			Body []history.Entry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "latest-history",
		Method:      http.MethodGet,
		Path:        "/history/latest",
		Summary:     "Latest assessment history entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body history.Entry `json:"body"`
	}, error) {
		entry, ok, err := cfg.History.Latest()
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no assessment history recorded", nil)
		}
		return &struct {
			Body history.Entry `json:"body"`
		}{Body: entry}, nil
	})
}
