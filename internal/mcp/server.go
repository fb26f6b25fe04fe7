package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/corpusrank/internal/config"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
	"github.com/Aman-CERP/corpusrank/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "corpusrank"

const (
	defaultLimit = 10
	maxLimit     = 50
)

// StatsSource reports index statistics. Satisfied by *store.Catalog.
type StatsSource interface {
	Stats(ctx context.Context) (store.CatalogStats, error)
}

// Server bridges MCP clients with the ranking engine.
type Server struct {
	mcp      *mcp.Server
	engine   rank.Searcher
	stats    StatsSource
	embedder embed.Embedder
	config   *config.Config
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_corpus",
		Description: "Semantic search over the indexed document corpus. Results are re-ranked by recency and source quality and can be filtered by quality rating, format and tags.",
	},
	{
		Name:        "hybrid_search",
		Description: "Search that blends semantic similarity with BM25 keyword matching. Use when exact terms, names or identifiers matter.",
	},
	{
		Name:        "assess_coverage",
		Description: "Estimate how well the corpus covers a topic. Returns a coverage percentage, the number of distinct sources and a short note.",
	},
	{
		Name:        "index_status",
		Description: "Report document and chunk counts, the last indexing time and the active embedding model.",
	},
}

// NewServer creates a new MCP server. stats and embedder may be nil; the
// status tool then reports what it can.
func NewServer(engine rank.Searcher, stats StatsSource, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		stats:    stats,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.handleSearchCorpus)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.handleHybridSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.handleAssessCoverage)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.handleIndexStatus)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with JSON-style arguments and returns
// its markdown rendering. Used by tests and the CLI.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_corpus":
		var in SearchCorpusInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.searchCorpus(ctx, in)
		if err != nil {
			return "", err
		}
		return formatOutput(in.Query, out), nil
	case "hybrid_search":
		var in HybridSearchInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.hybridSearch(ctx, in)
		if err != nil {
			return "", err
		}
		return formatOutput(in.Query, out), nil
	case "assess_coverage":
		var in AssessCoverageInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.assessCoverage(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatCoverage(out), nil
	case "index_status":
		out, err := s.indexStatus(ctx)
		if err != nil {
			return "", err
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return string(data), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func (s *Server) handleSearchCorpus(ctx context.Context, _ *mcp.CallToolRequest, in SearchCorpusInput) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.searchCorpus(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(formatOutput(in.Query, out)), out, nil
}

func (s *Server) handleHybridSearch(ctx context.Context, _ *mcp.CallToolRequest, in HybridSearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.hybridSearch(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(formatOutput(in.Query, out)), out, nil
}

func (s *Server) handleAssessCoverage(ctx context.Context, _ *mcp.CallToolRequest, in AssessCoverageInput) (*mcp.CallToolResult, CoverageOutput, error) {
	out, err := s.assessCoverage(ctx, in)
	if err != nil {
		return nil, CoverageOutput{}, err
	}
	return textResult(FormatCoverage(out)), out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, IndexStatusOutput, error) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) searchCorpus(ctx context.Context, in SearchCorpusInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	q := rank.WeightedQuery{
		Query:         in.Query,
		N:             clampLimit(in.Limit, defaultLimit, maxLimit),
		RecencyWeight: weightOr(in.RecencyWeight, s.config.Ranking.RecencyWeight),
		QualityWeight: weightOr(in.QualityWeight, s.config.Ranking.QualityWeight),
		Quality:       in.Quality,
		Format:        in.Format,
		Tags:          in.Tags,
	}
	return s.runSearch(ctx, "search_corpus", in.Query, func() ([]rank.SearchResult, error) {
		return s.engine.SearchWithWeights(ctx, q)
	})
}

func (s *Server) hybridSearch(ctx context.Context, in HybridSearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	q := rank.HybridQuery{
		Query:          in.Query,
		N:              clampLimit(in.Limit, defaultLimit, maxLimit),
		SemanticWeight: weightOr(in.SemanticWeight, s.config.Ranking.SemanticWeight),
		BM25Weight:     weightOr(in.BM25Weight, s.config.Ranking.BM25Weight),
	}
	return s.runSearch(ctx, "hybrid_search", in.Query, func() ([]rank.SearchResult, error) {
		return s.engine.HybridSearch(ctx, q)
	})
}

// runSearch wraps a search call with request logging and error mapping.
func (s *Server) runSearch(ctx context.Context, tool, query string, search func() ([]rank.SearchResult, error)) (SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info(tool+" started",
		slog.String("request_id", requestID),
		slog.String("query", query))

	results, err := search()
	duration := time.Since(start)
	if err != nil {
		s.logger.Error(tool+" failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info(tool+" completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	out := SearchOutput{Results: make([]ResultOutput, 0, len(results)), Count: len(results)}
	for _, r := range results {
		out.Results = append(out.Results, ToResultOutput(r))
	}
	return out, nil
}

func (s *Server) assessCoverage(ctx context.Context, in AssessCoverageInput) (CoverageOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return CoverageOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	c, err := s.engine.Coverage(ctx, in.Query)
	if err != nil {
		s.logger.Error("assess_coverage failed",
			slog.String("query", in.Query),
			slog.String("error", err.Error()))
		return CoverageOutput{}, MapError(err)
	}
	s.logger.Info("assess_coverage completed",
		slog.String("query", in.Query),
		slog.Float64("coverage_pct", c.Pct),
		slog.Int("source_count", c.SourceCount))
	return ToCoverageOutput(c), nil
}

func (s *Server) indexStatus(ctx context.Context) (IndexStatusOutput, error) {
	out := IndexStatusOutput{
		CorpusRoot: s.config.Paths.CorpusRoot,
		Model:      "none",
		Backend:    s.config.Store.Backend,
	}
	if s.embedder != nil {
		out.Model = s.embedder.ModelName()
		out.Dimensions = s.embedder.Dimensions()
	}
	if s.stats != nil {
		st, err := s.stats.Stats(ctx)
		if err != nil {
			return out, MapError(err)
		}
		out.Documents = st.Documents
		out.Chunks = st.Chunks
		if !st.LastIndex.IsZero() {
			out.LastIndexed = st.LastIndex.UTC().Format(time.RFC3339)
		}
	}
	return out, nil
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func formatOutput(query string, out SearchOutput) string {
	return FormatSearchResults(query, out.Results)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// decodeArgs maps loosely typed arguments onto a tool input struct.
func decodeArgs(args map[string]any, into any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func weightOr(w *float64, fallback float64) float64 {
	if w == nil {
		return fallback
	}
	return *w
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
