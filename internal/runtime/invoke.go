package runtime

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxInvokeBody bounds the POST /invoke request body.
const maxInvokeBody = 1 << 20

// Validation issue types.
const (
	IssueMissing     = "missing"
	IssueStringType  = "string_type"
	IssueDictType    = "dict_type"
	IssueJSONInvalid = "json_invalid"
	IssueValueError  = "value_error"
)

// ValidationIssue describes one problem with a request body.
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	UserID  string         `json:"user_id"`
	Input   map[string]any `json:"input"`
	Context map[string]any `json:"context"`
}

// decodeInvokeRequest parses and validates the body, collecting every issue
// rather than stopping at the first.
func decodeInvokeRequest(w http.ResponseWriter, r *http.Request) (InvokeRequest, []ValidationIssue) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err != nil {
		return InvokeRequest{}, []ValidationIssue{bodyIssue("Unable to read request body: " + err.Error())}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return InvokeRequest{}, []ValidationIssue{bodyIssue("JSON decode error: " + err.Error())}
	}
	if fields == nil {
		return InvokeRequest{}, []ValidationIssue{bodyIssue("Input should be a valid JSON object")}
	}

	var (
		req    InvokeRequest
		issues []ValidationIssue
	)

	raw, ok := fields["user_id"]
	switch {
	case !ok || isNull(raw):
		issues = append(issues, fieldIssue("user_id", "Field required", IssueMissing))
	case json.Unmarshal(raw, &req.UserID) != nil:
		issues = append(issues, fieldIssue("user_id", "Input should be a valid string", IssueStringType))
	case strings.TrimSpace(req.UserID) == "":
		issues = append(issues, fieldIssue("user_id", "Value error, user_id must not be empty", IssueValueError))
	}

	var issue *ValidationIssue
	if req.Input, issue = decodeObject(fields, "input"); issue != nil {
		issues = append(issues, *issue)
	}
	if req.Context, issue = decodeObject(fields, "context"); issue != nil {
		issues = append(issues, *issue)
	}
	return req, issues
}

// decodeObject reads an optional object field. Absent and null both yield
// an empty map.
func decodeObject(fields map[string]json.RawMessage, name string) (map[string]any, *ValidationIssue) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		issue := fieldIssue(name, "Input should be a valid dictionary", IssueDictType)
		return nil, &issue
	}
	return m, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func bodyIssue(msg string) ValidationIssue {
	return ValidationIssue{Loc: []string{"body"}, Msg: msg, Type: IssueJSONInvalid}
}

func fieldIssue(field, msg, typ string) ValidationIssue {
	return ValidationIssue{Loc: []string{"body", field}, Msg: msg, Type: typ}
}
