package scrape

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/regwatch/regwatch/internal/listing"
)

// SubprocessAdapter shells out to an external scraper and reads its
// results as a JSON array on stdout. The child is invoked as:
//
//	<command> <platform> --city <city> --pages <n> --json-stdout
//
// Anything the child writes to stderr is forwarded to the log as
// diagnostics. A non-zero exit or unparseable stdout is an
// AdapterError.
type SubprocessAdapter struct {
	command  string
	platform listing.Platform
}

func NewSubprocessAdapter(command string, platform listing.Platform) *SubprocessAdapter {
	return &SubprocessAdapter{command: command, platform: platform}
}

func (a *SubprocessAdapter) Platform() listing.Platform { return a.platform }

func (a *SubprocessAdapter) Scrape(ctx context.Context, params TargetParams) ([]*listing.Listing, error) {
	args := []string{string(a.platform)}
	if params.City != "" {
		args = append(args, "--city", params.City)
	}
	if params.MaxPages > 0 {
		args = append(args, "--pages", strconv.Itoa(params.MaxPages))
	}
	args = append(args, "--json-stdout")

	cmd := exec.CommandContext(ctx, a.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running scraper subprocess", "command", a.command, "args", args)
	err := cmd.Run()

	logStderr(a.platform, stderr.Bytes())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, &AdapterError{Platform: a.platform, Reason: "scraper process failed", Err: err}
	}

	var records []*listing.Listing
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		return nil, &AdapterError{Platform: a.platform, Reason: "unparseable scraper output", Err: err}
	}

	for _, l := range records {
		l.Platform = a.platform
		l.City = listing.NormalizeCity(l.City)
		l.PropertyType = listing.NormalizePropertyType(string(l.PropertyType))
	}
	return records, nil
}

// logStderr surfaces the child's diagnostics line by line.
func logStderr(platform listing.Platform, data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			slog.Info("scraper stderr", "platform", platform, "line", line)
		}
	}
}
