// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andre-cardia/c4marketing-sub000/internal/config"
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/embedding"
	"github.com/Andre-cardia/c4marketing-sub000/internal/ollama"
	"github.com/Andre-cardia/c4marketing-sub000/internal/retrieval"
)

// =============================================================================
// HELPERS
// =============================================================================

// keywordEmbedder maps contract talk to one axis and everything else to the
// other, so similarity is predictable.
var keywordEmbedder = embedding.Func(func(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "contrato") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
})

func testDeps(emb embedding.Embedder) deps {
	d := defaultDeps()
	d.newEmbedder = func(*config.Config) (embedding.Embedder, error) { return emb, nil }
	return d
}

// writeTestConfig writes a SQLite-backed config into a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"C4ROUTE_REASONING", "C4ROUTE_STORE_DRIVER", "C4ROUTE_STORE_PATH",
		"C4ROUTE_DATABASE_URL", "C4ROUTE_LOG_LEVEL", "C4ROUTE_LOG_JSON",
		"C4ROUTE_EMBEDDING_PROVIDER", "C4ROUTE_REASONER_PROVIDER",
	} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[store]\ndriver = \"sqlite\"\npath = \"" + filepath.ToSlash(filepath.Join(dir, "docs.db")) + "\"\n\n[log]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the root command and returns stdout.
func run(t *testing.T, d deps, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2025-03-10"}, d)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Command string          `json:"command"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

// =============================================================================
// JSON ENVELOPE
// =============================================================================

func TestJSONResponse(t *testing.T) {
	ok := NewJSONResponse("route", map[string]int{"n": 1})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)
	assert.Contains(t, ok.String(), `"command": "route"`)

	failed := NewJSONErrorResponse("retrieve", "boom")
	var buf bytes.Buffer
	require.NoError(t, failed.Print(&buf))
	env := decodeEnvelope(t, buf.String())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "boom", *env.Error)
	assert.Equal(t, "null", string(env.Data))
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestRouteCommand_JSON(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, testDeps(keywordEmbedder), "",
		"--config", cfgPath, "--json", "route", "--tenant", "tenant-1", "Qual o valor do contrato da Acme?")
	require.NoError(t, err)

	env := decodeEnvelope(t, out)
	assert.True(t, env.Success)
	assert.Equal(t, "route", env.Command)

	var data RouteData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "tenant-1", data.Input.TenantID)
	assert.Equal(t, decision.AgentContracts, data.Decision.Agent)
	assert.Equal(t, decision.PolicyStrictDocsOnly, data.Decision.Policy)
	assert.Equal(t, "tenant-1", data.Decision.Filters.TenantID)
	assert.Contains(t, data.Decision.Filters.BlockCategories, decision.CategoryChatLog)
}

func TestRouteCommand_Human(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, testDeps(keywordEmbedder), "",
		"--config", cfgPath, "route", "-t", "tenant-1", "Qual o valor do contrato?")
	require.NoError(t, err)
	assert.Contains(t, out, "Routing decision")
	assert.Contains(t, out, string(decision.AgentContracts))
}

func TestRouteCommand_RequiresTenant(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := run(t, testDeps(keywordEmbedder), "", "--config", cfgPath, "route", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant")
}

func TestAgentsCommand(t *testing.T) {
	out, err := run(t, defaultDeps(), "", "--json", "agents")
	require.NoError(t, err)

	var data AgentsData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &data))
	assert.Len(t, data.Agents, len(decision.AgentNames()))

	out, err = run(t, defaultDeps(), "", "agents", string(decision.AgentFinance))
	require.NoError(t, err)
	assert.Contains(t, out, "query_financial_summary")

	out, err = run(t, defaultDeps(), "", "--json", "agents", "nobody")
	require.Error(t, err)
	assert.False(t, decodeEnvelope(t, out).Success)
}

func TestIngestThenRetrieve(t *testing.T) {
	cfgPath := writeTestConfig(t)
	d := testDeps(keywordEmbedder)

	docs := strings.Join([]string{
		`# seed`,
		``,
		`{"id":"contract-1","content":"Contrato de SEO da Acme, vigência 12 meses","category":"official_doc","artifact_kind":"contract"}`,
		`{"id":"chat-1","content":"no chat falaram do contrato","category":"chat_log"}`,
		`{"id":"other-tenant","tenant_id":"tenant-2","content":"Contrato de outra agência","category":"official_doc"}`,
	}, "\n")

	out, err := run(t, d, docs, "--config", cfgPath, "--json", "ingest", "--tenant", "tenant-1", "-")
	require.NoError(t, err)
	var stats IngestData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &stats))
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 2, stats.Skipped)

	out, err = run(t, d, "", "--config", cfgPath, "--json", "retrieve", "--tenant", "tenant-1", "Qual a vigência do contrato?")
	require.NoError(t, err)

	var data RetrieveData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &data))
	require.Len(t, data.Docs, 1, "chat logs and other tenants must not come back")
	assert.Equal(t, "contract-1", data.Docs[0].ID)
	assert.InDelta(t, 1.0, data.Docs[0].Similarity, 1e-6)
}

func TestRetrieve_EmbedderFailureShowsUserMessage(t *testing.T) {
	cfgPath := writeTestConfig(t)
	failing := embedding.Func(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("dial tcp 10.0.0.5:11434: connection refused")
	})

	out, err := run(t, testDeps(failing), "", "--config", cfgPath, "--json", "retrieve", "-t", "tenant-1", "Qual o valor do contrato?")
	require.Error(t, err)

	env := decodeEnvelope(t, out)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, retrieval.UserMessage, *env.Error)
	assert.NotContains(t, out, "10.0.0.5")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, defaultDeps(), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc1234")
}

func TestConfigCommands(t *testing.T) {
	for _, name := range []string{"C4ROUTE_STORE_DRIVER", "C4ROUTE_LOG_LEVEL", "C4ROUTE_OPENAI_KEY"} {
		t.Setenv(name, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := run(t, defaultDeps(), "", "--config", path, "config", "init")
	require.NoError(t, err)
	_, err = run(t, defaultDeps(), "", "--config", path, "config", "init")
	assert.Error(t, err, "init must not overwrite without --force")
	_, err = run(t, defaultDeps(), "", "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err := run(t, defaultDeps(), "", "--config", path, "config", "get", "store.driver")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", strings.TrimSpace(out))

	out, err = run(t, defaultDeps(), "", "--config", path, "--json", "config", "show")
	require.NoError(t, err)
	assert.True(t, decodeEnvelope(t, out).Success)
}

func TestDoctorCommand(t *testing.T) {
	t.Run("Should pass with a reachable embedder", func(t *testing.T) {
		cfgPath := writeTestConfig(t)
		d := testDeps(keywordEmbedder)
		d.pingOllama = func(context.Context, string) error { return nil }

		out, err := run(t, d, "", "--config", cfgPath, "--json", "doctor")
		require.NoError(t, err)

		env := decodeEnvelope(t, out)
		assert.True(t, env.Success)
		var data DoctorData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.True(t, data.Passed)
		require.Len(t, data.Checks, 5)
		assert.Equal(t, "Reasoner", data.Checks[2].Name)
		assert.Equal(t, CheckWarn, data.Checks[2].Status)
		assert.Contains(t, out, `"status": "warn"`)
	})

	t.Run("Should fail and suggest a fix when ollama is down", func(t *testing.T) {
		cfgPath := writeTestConfig(t)
		d := testDeps(keywordEmbedder)
		d.pingOllama = func(context.Context, string) error { return ollama.ErrNotRunning }

		out, err := run(t, d, "", "--config", cfgPath, "doctor")
		require.ErrorIs(t, err, errChecksFailed)
		assert.Contains(t, out, "[fail]")
		assert.Contains(t, out, "ollama serve")
	})
}
