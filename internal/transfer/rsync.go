package transfer

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Rsync implements Syncer on top of the rsync binary.
//
// Change detection is rsync's quick check (size + mtime) unless checksums
// are requested; metadata comparison stays authoritative so unchanged files
// are linked, not re-copied. Symlinks are reproduced as symlinks, hard links
// inside the source are preserved, and device/special files carry over.
type Rsync struct {
	// Bin is the rsync executable; "rsync" resolves through PATH.
	Bin string
	Log *slog.Logger
}

func NewRsync(log *slog.Logger) *Rsync {
	return &Rsync{Bin: "rsync", Log: log}
}

// rsync exit codes that mean "some files could not be transferred" rather
// than "the transfer is unreliable".
const (
	exitPartial  = 23
	exitVanished = 24
)

// args builds the argv after the binary name.
func (r *Rsync) args(req Request) []string {
	a := []string{"-rtDHh", "--links", "--relative", "--delete", "--delete-excluded", "--stats"}

	if req.PreservePermissions {
		a = append(a, "-pgo")
	} else {
		a = append(a, "--no-p", "--no-g", "--no-o")
	}
	if req.Checksum {
		a = append(a, "--checksum")
	}
	if req.Sparse {
		a = append(a, "--sparse")
	}
	for _, pattern := range req.Excludes {
		a = append(a, "--exclude="+pattern)
	}
	if req.LinkRef != "" {
		a = append(a, "--link-dest="+req.LinkRef)
	}

	a = append(a, req.Sources...)
	a = append(a, req.Dest)
	return a
}

func (r *Rsync) Sync(ctx context.Context, req Request) (Result, error) {
	args := r.args(req)
	r.Log.Debug("invoking rsync", "args", strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := append(stdout.Bytes(), stderr.Bytes()...)
	res := parseStats(stdout.String())
	res.Log = output
	if req.LinkRef != "" && res.FilesTotal >= res.FilesTransferred {
		res.FilesLinked = res.FilesTotal - res.FilesTransferred
	}

	if runErr == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		switch exitErr.ExitCode() {
		case exitPartial, exitVanished:
			res.Warnings = append(res.Warnings, perFileWarnings(stderr.String())...)
			if len(res.Warnings) == 0 {
				res.Warnings = append(res.Warnings, "rsync reported partial transfer (exit "+strconv.Itoa(exitErr.ExitCode())+")")
			}
			return res, nil
		default:
			return res, NewFatalError("rsync exited "+strconv.Itoa(exitErr.ExitCode()), runErr)
		}
	}

	return res, NewFatalError("starting rsync", runErr)
}

var (
	// "Number of files: 1,234 (reg: 1,200, dir: 34)"
	statTotalReg = regexp.MustCompile(`Number of files:\s*([\d,]+)(?:\s*\(reg:\s*([\d,]+))?`)
	// rsync >= 3.1: "Number of regular files transferred: 2"
	// older:        "Number of files transferred: 2"
	statTransferred = regexp.MustCompile(`Number of (?:regular )?files transferred:\s*([\d,]+)`)
)

func parseStats(out string) Result {
	var res Result

	if m := statTotalReg.FindStringSubmatch(out); m != nil {
		if m[2] != "" {
			res.FilesTotal = atoiGrouped(m[2])
		} else {
			res.FilesTotal = atoiGrouped(m[1])
		}
	}
	if m := statTransferred.FindStringSubmatch(out); m != nil {
		res.FilesTransferred = atoiGrouped(m[1])
	}

	return res
}

func atoiGrouped(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// perFileWarnings extracts the per-file complaints rsync prints to stderr.
func perFileWarnings(stderr string) []string {
	var warnings []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "rsync error:") {
			// summary line, not a per-file problem
			continue
		}
		warnings = append(warnings, line)
	}
	return warnings
}
