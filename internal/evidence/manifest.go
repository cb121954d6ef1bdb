// Package evidence builds tamper-evident manifests of run artifacts for
// audit traceability.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eyesight-qa/apiverify/internal/telemetry"
)

const hashWorkers = 4

// ArtifactRef records one produced artifact by content hash.
type ArtifactRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// GitInfo is the repository state a run was produced from.
type GitInfo struct {
	Head   *string `json:"head"`
	Branch *string `json:"branch"`
}

// ConfigSnapshot is the safe-to-share subset of run configuration.
type ConfigSnapshot struct {
	BaseURL   string `json:"sut_base_url,omitempty"`
	AuthMode  string `json:"sut_auth_mode"`
	VerifyTLS bool   `json:"sut_verify_tls"`
}

// Manifest proves which artifacts a specific run produced. Read-only once
// built; it must never embed secret values (artifacts are hashed after
// redaction already happened upstream).
type Manifest struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Git         GitInfo        `json:"git"`
	Runtime     RuntimeInfo    `json:"runtime"`
	Config      ConfigSnapshot `json:"config"`
	Artifacts   []ArtifactRef  `json:"artifacts"`
}

// RuntimeInfo records the toolchain and platform of the run.
type RuntimeInfo struct {
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// Builder hashes artifacts and assembles manifests.
type Builder struct {
	repoRoot string
	snapshot ConfigSnapshot
	log      logrus.FieldLogger
}

// NewBuilder creates a manifest builder. repoRoot is used for git state; an
// empty value means the current directory.
func NewBuilder(log logrus.FieldLogger, repoRoot string, snapshot ConfigSnapshot) *Builder {
	if repoRoot == "" {
		repoRoot = "."
	}

	return &Builder{
		repoRoot: repoRoot,
		snapshot: snapshot,
		log:      log.WithField("component", "evidence"),
	}
}

// Build hashes every existing artifact path. Absent paths are skipped, not
// errors: a run legitimately produces only a subset of its possible artifacts.
func (b *Builder) Build(ctx context.Context, paths []string) (*Manifest, error) {
	m := &Manifest{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Git:         readGitInfo(b.repoRoot),
		Runtime: RuntimeInfo{
			Go:       runtime.Version(),
			Platform: runtime.GOOS + "/" + runtime.GOARCH,
		},
		Config:    b.snapshot,
		Artifacts: []ArtifactRef{},
	}

	var (
		mu   sync.Mutex
		g, _ = errgroup.WithContext(ctx)
	)
	g.SetLimit(hashWorkers)

	for _, p := range paths {
		p := p
		g.Go(func() error {
			ref, ok, err := hashArtifact(p)
			if err != nil {
				return err
			}
			if !ok {
				b.log.WithField("path", p).Debug("artifact absent, skipped")
				return nil
			}

			mu.Lock()
			m.Artifacts = append(m.Artifacts, ref)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(m.Artifacts, func(i, j int) bool { return m.Artifacts[i].Path < m.Artifacts[j].Path })

	b.log.WithFields(logrus.Fields{
		"run_id":    m.RunID,
		"artifacts": len(m.Artifacts),
	}).Debug("manifest built")

	return m, nil
}

// Write serializes the manifest with a final redaction pass over the JSON
// text, then writes it to path.
func (b *Builder) Write(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	text := telemetry.RedactText(string(data))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating manifest directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	return nil
}

// HashFile computes the SHA-256 of a file's exact on-disk bytes at call time.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashArtifact(path string) (ArtifactRef, bool, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ArtifactRef{}, false, nil
	}

	sum, err := HashFile(path)
	if err != nil {
		return ArtifactRef{}, false, fmt.Errorf("hashing %s: %w", path, err)
	}

	return ArtifactRef{
		Path:   filepath.ToSlash(path),
		SHA256: sum,
		Bytes:  info.Size(),
	}, true, nil
}

// readGitInfo reads HEAD and branch straight from .git, avoiding a dependency
// on a git binary in CI.
func readGitInfo(repoRoot string) GitInfo {
	gitDir := filepath.Join(repoRoot, ".git")

	head, ok := readTrimmed(filepath.Join(gitDir, "HEAD"))
	if !ok {
		return GitInfo{}
	}

	if !strings.HasPrefix(head, "ref:") {
		// Detached HEAD.
		return GitInfo{Head: &head}
	}

	ref := strings.TrimSpace(strings.TrimPrefix(head, "ref:"))

	var branch *string
	if strings.HasPrefix(ref, "refs/heads/") {
		b := strings.TrimPrefix(ref, "refs/heads/")
		branch = &b
	}

	if sha, ok := readTrimmed(filepath.Join(gitDir, filepath.FromSlash(ref))); ok {
		return GitInfo{Head: &sha, Branch: branch}
	}

	// Packed refs fallback.
	if packed, ok := readTrimmed(filepath.Join(gitDir, "packed-refs")); ok {
		for _, line := range strings.Split(packed, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
				continue
			}

			sha, name, found := strings.Cut(line, " ")
			if found && strings.TrimSpace(name) == ref {
				sha = strings.TrimSpace(sha)
				return GitInfo{Head: &sha, Branch: branch}
			}
		}
	}

	return GitInfo{Branch: branch}
}

func readTrimmed(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
