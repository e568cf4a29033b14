package converse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/tools"
)

// sqlPrefixes are the statement keywords a generated query may begin with.
var sqlPrefixes = []string{"select", "insert", "update", "delete"}

// Router issues the auxiliary model calls of a conversational turn: query
// generation, visualization classification and artifact generation. Each
// call runs as an independent loop turn; only the generation call has tool
// declarations active.
type Router struct {
	loop     *Loop
	database string
	table    string
	logger   log.Logger
}

// RouterConfig contains the Router's dependencies.
type RouterConfig struct {
	Loop     *Loop
	Database string // target database name embedded in prompts
	Table    string // target table name embedded in prompts
	Logger   log.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Loop == nil {
		return nil, errors.New("loop is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		loop:     cfg.Loop,
		database: cfg.Database,
		table:    cfg.Table,
		logger:   cfg.Logger.With("component", "router"),
	}, nil
}

// GenerateQuery asks the model for a single SQL statement answering the
// user's request and validates it. The response is cleaned of newlines and
// backslashes; it must case-insensitively begin with select, insert, update
// or delete, otherwise ErrInvalidQuery.
func (r *Router) GenerateQuery(ctx context.Context, inv tools.Invocation, userQuery string, sender Sender) (string, error) {
	prompt := fmt.Sprintf(
		"Generate an SQL query based on the following user request: '%s'. "+
			"For example, if the user requests 'show all sales', the response should be 'SELECT * FROM sales;'. "+
			"Only provide the SQL query, no explanations. "+
			"The query should be formatted in a single line. "+
			"Use the database '%s' and the table '%s'.",
		userQuery, r.database, r.table,
	)

	response, err := r.loop.Run(ctx, inv, []model.Message{model.NewUserMessage(prompt)}, false, sender)
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	sql := strings.ReplaceAll(response, "\n", "")
	sql = strings.ReplaceAll(sql, "\\", "")

	if !validSQL(sql) {
		r.logger.Warn("generated statement rejected", "statement", sql)
		return "", fmt.Errorf("%w: %q", ErrInvalidQuery, sql)
	}

	r.logger.Debug("generated query", "sql", sql)
	return sql, nil
}

// validSQL reports whether the cleaned statement begins with an allowed
// SQL keyword.
func validSQL(sql string) bool {
	lower := strings.ToLower(strings.TrimSpace(sql))
	for _, prefix := range sqlPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Classify asks the model whether the user wants a table or a chart. The
// prompt embeds the user's request only, not the data.
func (r *Router) Classify(ctx context.Context, inv tools.Invocation, userQuery string, sender Sender) (Intent, error) {
	prompt := fmt.Sprintf(
		"Based on the user's input, determine whether the request is to generate a table or a chart "+
			"using the provided data. This is the user's request: <input>%s</input>. "+
			"Always answer in english.",
		userQuery,
	)

	response, err := r.loop.Run(ctx, inv, []model.Message{model.NewUserMessage(prompt)}, false, sender)
	if err != nil {
		return IntentUnknown, fmt.Errorf("classify intent: %w", err)
	}

	intent := ParseIntent(response)
	r.logger.Debug("classified intent", "intent", intent.String())
	return intent, nil
}

// Generate produces the final structured artifact for the intent from the
// serialized query results. IntentUnknown is rejected by the caller before
// this call; it is a programming error here.
func (r *Router) Generate(ctx context.Context, inv tools.Invocation, intent Intent, resultsJSON string, sender Sender) (string, error) {
	var prompt string
	switch intent {
	case IntentChart:
		prompt = fmt.Sprintf(
			"Generate a Chart.js JSON structure using the following data: <data>%s</data>. "+
				"Use one field as the labels for the x-axis, and the other field as the data for the y-axis in the 'datasets' property. "+
				"Ensure the JSON structure follows Chart.js conventions, including the 'labels', 'datasets', 'backgroundColor', and 'borderColor' properties. "+
				"Do not use HTML or artifact tags, return only the JSON object. "+
				"Ignore the first object if it contains just the property names.",
			resultsJSON,
		)
	case IntentTable:
		prompt = fmt.Sprintf(
			"Create a table based on the following data and return a JSON structure in this format: "+
				"{'title': string, 'elements': any[], 'totalElements': number}. "+
				"Also, provide an HTML representation of the table using <x-artifact> tags. "+
				"Here is the data: <result>%s</result>. "+
				"Ensure the JSON structure includes a valid title, an array of data as 'elements', and the correct 'totalElements' count. "+
				"Ignore the first row if it contains just the column names.",
			resultsJSON,
		)
	default:
		return "", errors.New("cannot generate artifact for unknown intent")
	}

	artifact, err := r.loop.Run(ctx, inv, []model.Message{model.NewUserMessage(prompt)}, true, sender)
	if err != nil {
		return "", fmt.Errorf("generate artifact: %w", err)
	}
	return artifact, nil
}
