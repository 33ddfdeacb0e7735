package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubelens/internal/api"
)

var errUnhealthy = errors.New("system unhealthy")

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run preflight checks against dependencies and storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.AnalysisService) error {
				view := svc.Health(cmd.Context(), deep)
				if err := emit(cmd, ctx, view, func() string {
					return renderHealth(view, shouldColorize(cmd.OutOrStdout()))
				}); err != nil {
					return err
				}
				if !view.Healthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Also check provider connectivity")
	return cmd
}

func renderHealth(view *api.HealthView, color bool) string {
	text := api.RenderHealth(view)
	if !color {
		return text
	}
	first, rest, _ := strings.Cut(text, "\n")
	tint := ansiGreen
	if !view.Healthy {
		tint = ansiRed
	}
	return fmt.Sprintf("%s\n%s", colorize(first, tint, true), rest)
}
