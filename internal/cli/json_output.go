// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Andre-cardia/c4marketing-sub000/internal/agents"
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response. msg is what the
// user sees; it is usually err.Error() but may be a safe replacement.
func NewJSONErrorResponse(command string, msg string) *JSONResponse {
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// RouteData is the data returned by the route command.
type RouteData struct {
	Input    decision.RouterInput   `json:"input"`
	Decision decision.RouteDecision `json:"decision"`
}

// RetrieveData is the data returned by the retrieve command.
type RetrieveData struct {
	Decision decision.RouteDecision  `json:"decision"`
	Docs     []decision.RetrievedDoc `json:"documents"`
	Rows     []map[string]any        `json:"rows,omitempty"`
}

// AgentsData is the data returned by the agents command.
type AgentsData struct {
	Agents []agents.AgentConfig `json:"agents"`
}

// IngestData is the data returned by the ingest command.
type IngestData struct {
	Source   string `json:"source"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}
