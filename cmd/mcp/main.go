package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fundqa/exam-copilot/internal/bootstrap"
	"github.com/fundqa/exam-copilot/internal/config"
	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("exam-copilot-mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mcpServer := server.NewMCPServer("exam-copilot", "1.0.0", server.WithToolCapabilities(false))

	askTool := mcp.NewTool("ask_textbook",
		mcp.WithDescription("回答基金从业资格考试相关问题，答案严格依据教材证据，并附证据出处。"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("考试问题，支持选择题和计算题"),
		),
	)
	mcpServer.AddTool(askTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := app.QueryUC.Answer(ctx, question)
		if err != nil {
			logger.Error("mcp answer failed", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatToolResponse(result)), nil
	})

	chaptersTool := mcp.NewTool("list_chapters",
		mcp.WithDescription("列出教材语料的章节目录，用于限定出题或检索范围。"),
	)
	mcpServer.AddTool(chaptersTool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tree, err := app.Chunks.ChapterTree(ctx)
		if err != nil {
			logger.Error("mcp chapter tree failed", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("list chapters failed: %v", err)), nil
		}

		var sb strings.Builder
		for _, node := range tree {
			sb.WriteString(node.Chapter)
			sb.WriteString("\n")
			for _, section := range node.Sections {
				sb.WriteString("  ")
				sb.WriteString(section)
				sb.WriteString("\n")
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	})

	if err := server.ServeStdio(mcpServer); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func formatToolResponse(result *domain.QueryResult) string {
	var sb strings.Builder
	sb.WriteString(result.FullResponse)

	if len(result.EvidenceSources) > 0 {
		sb.WriteString("\n\n证据出处：\n")
		for _, src := range result.EvidenceSources {
			sb.WriteString(fmt.Sprintf("- %s %s %s", src.Book, src.Chapter, src.Section))
			if src.FigureRef != "" {
				sb.WriteString(" (" + src.FigureRef + ")")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
