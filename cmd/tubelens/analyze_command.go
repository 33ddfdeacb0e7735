package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubelens/internal/api"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <youtube-url>",
		Short: "Capture, transcribe and score a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				resp, err := svc.Analyze(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func() string { return renderAnalyze(resp, shouldColorize(cmd.OutOrStdout())) })
			})
		},
	}
}

func renderAnalyze(resp *api.AnalyzeResponse, color bool) string {
	var b strings.Builder
	status := colorize(resp.Message, ansiGreen, color)
	if resp.Degraded {
		status = colorize(resp.Message, ansiYellow, color)
	}
	fmt.Fprintf(&b, "%s\n", status)
	fmt.Fprintf(&b, "Analysis %s\n", resp.AnalysisID)
	if resp.VideoInfo.Title != "" {
		fmt.Fprintf(&b, "%s by %s\n", resp.VideoInfo.Title, resp.VideoInfo.Author)
	}
	if resp.Degraded {
		fmt.Fprintf(&b, "Degraded: %s\n", strings.Join(resp.DegradedReasons, "; "))
	}
	b.WriteString(api.RenderSummaryCounts(resp.Summary))
	b.WriteString("\n")
	if resp.Screenshot.URL != "" {
		fmt.Fprintf(&b, "Screenshot: %s\n", resp.Screenshot.URL)
	}
	return b.String()
}
