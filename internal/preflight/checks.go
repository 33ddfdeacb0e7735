package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"tubelens/internal/config"
	"tubelens/internal/deps"
	"tubelens/internal/detector"
	"tubelens/internal/services"
	"tubelens/internal/stt"
)

const providerCheckTimeout = 30 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace fails when the filesystem holding path has less than minFree
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < minFree {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %s", formatBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries the pipeline runs.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Audio.YtDlpBinary,
			Description: "Required for audio download",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Audio.FFmpegBinary,
			Description: "Required for audio normalization",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Audio.FFprobeBinary,
			Description: "Reports audio format details",
			Optional:    true,
		},
	}
	browser := deps.Requirement{
		Name:        "Chromium",
		Command:     cfg.Browser.ExecPath,
		Description: "Required for page capture",
	}
	if browser.Command == "" {
		browser.Command = firstOnPath("google-chrome", "chromium", "chromium-browser", "google-chrome-stable")
	}
	return deps.CheckBinaries(append(requirements, browser))
}

// CheckProviders calls both provider APIs with the configured keys.
func CheckProviders(ctx context.Context, cfg *config.Config) []Result {
	return []Result{
		checkProvider(ctx, "Speech-to-text API", stt.NewClient(stt.ConfigFromSettings(cfg)).CheckConnection),
		checkProvider(ctx, "AI detector API", detector.NewClient(detector.ConfigFromSettings(cfg)).CheckConnection),
	}
}

func checkProvider(ctx context.Context, name string, check func(context.Context) error) Result {
	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()
	if err := check(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// summarizeProviderError produces a human-readable summary for provider check failures.
func summarizeProviderError(err error) string {
	if errors.Is(err, services.ErrConfiguration) {
		return services.RootCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return services.RootCause(err)
}

func firstOnPath(names ...string) string {
	for _, name := range names {
		if _, err := execLookPath(name); err == nil {
			return name
		}
	}
	return names[0]
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

var execLookPath = exec.LookPath
