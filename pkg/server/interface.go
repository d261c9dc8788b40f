/*
Package server implements msgpack IPC for search suggestions.

The server reads MessagePack values from stdin and writes one response per
request to stdout. Each message carries an ID that is echoed back.

# IPC

Search requests:

	{"id": "req_001", "q": "kath", "l": 10}

are answered with the merged suggestion list and the time taken in microseconds:

	{"id": "req_001", "r": [{"n": "Kathmandu, Bagmati", "k": "state", "rt": "BA"}], "c": 1, "t": 145}

Control requests carry an action instead of a query:

	{"id": "ctl_001", "action": "stats"}
	{"id": "ctl_002", "action": "reload"}
	{"id": "ctl_003", "action": "suggestions"}

Failures are reported as {"id": "...", "e": "message", "c": 400}.
*/
package server

import (
	"github.com/nepalcovid19/searchserve/pkg/search"
	"github.com/nepalcovid19/searchserve/pkg/widget"
)

// SearchRequest - minimal search request
type SearchRequest struct {
	ID    string `msgpack:"id"`
	Query string `msgpack:"q"`
	Limit int    `msgpack:"l,omitempty"`
}

// SearchResponse - merged suggestions for one query
type SearchResponse struct {
	ID             string          `msgpack:"id"`
	Results        []search.Result `msgpack:"r"`
	Count          int             `msgpack:"c"`
	TimeTaken      int64           `msgpack:"t"`
	CorrectedQuery string          `msgpack:"cq,omitempty"`
}

// ControlRequest - stats, reload and suggestions actions
type ControlRequest struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action"`
}

// ControlResponse - control operation response
type ControlResponse struct {
	ID          string                   `msgpack:"id"`
	Status      string                   `msgpack:"status"`
	Error       string                   `msgpack:"error,omitempty"`
	Stats       map[string]int           `msgpack:"stats,omitempty"`
	Suggestions []widget.SuggestionGroup `msgpack:"suggestions,omitempty"`
}

// ErrorResponse holds basic error information for failed requests
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
