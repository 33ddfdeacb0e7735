package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tubelens/internal/api"
)

func newResultCommands(ctx *commandContext) []*cobra.Command {
	status := &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Show which artifacts exist for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view, err := svc.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func() string { return api.RenderStatus(view) })
			})
		},
	}

	result := &cobra.Command{
		Use:   "result <analysis-id>",
		Short: "Show metadata, summary and transcript for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view, err := svc.Result(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func() string { return api.RenderResult(view) })
			})
		},
	}

	transcriptCmd := &cobra.Command{
		Use:   "transcript <analysis-id>",
		Short: "Show the scored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				doc, err := svc.Transcript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, doc, func() string { return api.RenderTranscript(doc.Sentences()) })
			})
		},
	}

	summary := &cobra.Command{
		Use:   "summary <analysis-id>",
		Short: "Show classification counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view, err := svc.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func() string { return api.RenderSummary(view) })
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func() string { return api.RenderList(view) })
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <analysis-id>",
		Aliases: []string{"rm"},
		Short:   "Delete every artifact of an analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view, err := svc.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func() string {
					return fmt.Sprintf("%s (%d files)\n", view.Message, view.DeletedCount)
				})
			})
		},
	}

	return []*cobra.Command{status, result, transcriptCmd, summary, list, deleteCmd}
}
