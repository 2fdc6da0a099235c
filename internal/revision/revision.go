// Package revision implements the Revision Oracle: a thin, failure-swallowing
// window onto the workspace's version control state. Every operation here is
// idempotent and never propagates an error — a VCS binary that is missing,
// times out, or fails to resolve HEAD degrades to the "unknown" sentinel
// rather than surfacing through the pipeline. Uncommitted working-tree
// changes are not detected.
package revision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os/exec"
	"strings"
	"time"

	"orchestrator/internal/config"
)

// Unknown is returned by Current and FileDigest whenever the underlying VCS
// binary cannot produce a trustworthy answer.
const Unknown = "unknown"

// Oracle resolves the workspace's current revision and per-file content
// digests by shelling out to a configurable VCS binary (git by default).
type Oracle struct {
	vcsBinary string
	timeout   time.Duration
	workspace string
}

// New builds an Oracle bound to workspace, using the VCS binary and timeout
// named in cfg.
func New(cfg *config.Config, workspace string) *Oracle {
	return &Oracle{
		vcsBinary: cfg.Revision.VCSBinary,
		timeout:   cfg.RevisionTimeout(),
		workspace: workspace,
	}
}

// Current returns the 40-character identifier of the workspace's current
// revision, or Unknown if it cannot be determined.
func (o *Oracle) Current() string {
	out, err := o.run("rev-parse", "HEAD")
	if err != nil {
		return Unknown
	}
	rev := strings.TrimSpace(out)
	if len(rev) != 40 {
		return Unknown
	}
	return rev
}

// FileDigest returns a content-addressed identifier for relativePath as it
// exists at HEAD. It deliberately does not read the working tree: two
// concurrent tool calls racing a write to the same path must still agree on
// "what head looked like" to make the concurrency guard's comparison
// meaningful. Returns Unknown if the VCS binary cannot produce the content
// (file absent at HEAD, binary missing, timeout).
func (o *Oracle) FileDigest(relativePath string) string {
	out, err := o.runRaw("show", "HEAD:"+toSlash(relativePath))
	if err != nil {
		return Unknown
	}
	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:])
}

// IsUnknown reports whether a revision or digest string is the failure
// sentinel rather than a real identifier.
func IsUnknown(s string) bool {
	return s == Unknown || s == ""
}

func (o *Oracle) run(args ...string) (string, error) {
	out, err := o.runRaw(args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (o *Oracle) runRaw(args ...string) ([]byte, error) {
	binary := o.vcsBinary
	if binary == "" {
		binary = "git"
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = o.workspace

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
