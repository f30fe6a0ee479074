// Package repoingest walks a cloned (or already-checked-out) git
// repository and feeds its text/code files through IngestService, honoring
// the repository's own .gitignore. Grounded on the teacher's
// internal/gitingest/gitingest.go, generalized from a single SEFII-engine
// call per file to a batched ingest.Request so it benefits from the same
// upsert/chunk/embed/enrich pipeline every other ingest source goes
// through.
package repoingest

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"ragengine/internal/doctype"
	"ragengine/internal/ingest"
	"ragengine/internal/obs"
)

// maxFileBytes skips files larger than this — binaries mis-tagged with a
// text-like extension, generated lockfiles, vendored bundles.
const maxFileBytes = 2 << 20 // 2 MiB

// batchSize bounds how many files are sent to IngestService per Ingest
// call, so one oversized repo doesn't build an unbounded Items slice
// in memory before the first request round-trips.
const batchSize = 200

// langByExtension maps a file extension to the Lang field IngestService's
// GraphBackend/chunk metadata expects. Files whose extension is not listed
// are skipped.
var langByExtension = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".ts": "typescript",
	".tsx": "tsx", ".jsx": "jsx", ".java": "java", ".c": "c", ".h": "c",
	".cpp": "cpp", ".hpp": "cpp", ".cs": "csharp", ".rb": "ruby", ".rs": "rust",
	".php": "php", ".sh": "shell", ".sql": "sql", ".yaml": "yaml", ".yml": "yaml",
	".json": "json", ".toml": "toml", ".md": "markdown",
}

// Options configures one repository ingest run.
type Options struct {
	RepoID     string
	RepoURL    string
	LocalPath  string // clone destination / existing checkout
	Collection string
	Enrich     bool
}

// Result summarizes one repository ingest run.
type Result struct {
	FilesIngested int
	FilesSkipped  int
	Response      ingest.Response
}

// Ingester clones-or-opens a repository and ingests its eligible files.
type Ingester struct {
	ingest *ingest.Service
	logger obs.Logger
}

// New builds an Ingester that hands discovered files to svc.
func New(svc *ingest.Service, logger obs.Logger) *Ingester {
	if logger == nil {
		logger = obs.NoopLogger{}
	}
	return &Ingester{ingest: svc, logger: logger}
}

// Run clones opts.RepoURL into opts.LocalPath if it doesn't already exist
// (opening it in place otherwise), walks the working tree honoring
// .gitignore, and ingests every eligible file in batches.
func (g *Ingester) Run(ctx context.Context, opts Options) (Result, error) {
	repo, err := openOrClone(ctx, opts.RepoURL, opts.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("repoingest: %w", err)
	}
	if head, err := repo.Head(); err == nil {
		g.logger.Info("repoingest_head", map[string]any{"repoId": opts.RepoID, "hash": head.Hash().String()})
	}

	matcher := loadGitignore(opts.LocalPath)

	var result Result
	var batch []ingest.Item

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := g.ingest.Ingest(ctx, ingest.Request{
			Collection: opts.Collection,
			Enrich:     opts.Enrich,
			Items:      batch,
		})
		if err != nil {
			return err
		}
		result.Response.Upserted += resp.Upserted
		result.Response.Skipped += resp.Skipped
		result.Response.Errors = append(result.Response.Errors, resp.Errors...)
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(opts.LocalPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(opts.LocalPath, path)
		if err != nil {
			return err
		}
		if matcher != nil {
			parts := strings.Split(relPath, string(os.PathSeparator))
			if matcher.Match(parts, false) {
				result.FilesSkipped++
				return nil
			}
		}

		item, ok, err := g.loadItem(opts, relPath, path)
		if err != nil {
			return err
		}
		if !ok {
			result.FilesSkipped++
			return nil
		}

		batch = append(batch, item)
		result.FilesIngested++
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("repoingest: walk: %w", walkErr)
	}
	if err := flush(); err != nil {
		return result, fmt.Errorf("repoingest: ingest: %w", err)
	}
	return result, nil
}

func (g *Ingester) loadItem(opts Options, relPath, fullPath string) (ingest.Item, bool, error) {
	ext := strings.ToLower(filepath.Ext(relPath))
	lang, known := langByExtension[ext]
	if !known {
		return ingest.Item{}, false, nil
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return ingest.Item{}, false, err
	}
	if info.Size() > maxFileBytes {
		return ingest.Item{}, false, nil
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		g.logger.Warn("repoingest_read_failed", map[string]any{"path": relPath, "error": err.Error()})
		return ingest.Item{}, false, nil
	}
	if !known || looksBinary(data) {
		return ingest.Item{}, false, nil
	}

	dType := doctype.Code
	if ext == ".md" {
		dType = doctype.Article
	}

	return ingest.Item{
		ID:      opts.RepoID + ":" + relPath,
		Text:    string(data),
		Source:  opts.RepoURL + "/" + relPath,
		DocType: dType,
		RepoID:  opts.RepoID,
		RepoURL: opts.RepoURL,
		Path:    relPath,
		Lang:    lang,
	}, true, nil
}

// looksBinary is a cheap NUL-byte sniff over the first 512 bytes, the same
// heuristic git itself uses to decide whether to diff a file as text.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > 512 {
		n = 512
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

func openOrClone(ctx context.Context, repoURL, localPath string) (*git.Repository, error) {
	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: repoURL})
	}
	return git.PlainOpen(localPath)
}

func loadGitignore(localPath string) gitignore.Matcher {
	f, err := os.Open(filepath.Join(localPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, gitignore.ParsePattern(scanner.Text(), nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
