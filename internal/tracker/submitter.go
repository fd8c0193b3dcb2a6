package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// DefaultPacing is the minimum gap between two create calls.
const DefaultPacing = time.Second

var headingPattern = regexp.MustCompile(`(?m)^# (.+)$`)

// Options controls a SubmitDir run.
type Options struct {
	Owner     string
	Repo      string
	Branch    string
	Limit     int
	Labels    []string
	Assignees []string
	DryRun    bool

	// ContentRoot is the path of the output directory inside the repository
	// that hosts the images, used to build raw-content URLs.
	ContentRoot string

	// ImageDirs are the directory names relative links may point into.
	ImageDirs []string
}

// Result is the outcome of submitting one guide.
type Result struct {
	File   string `json:"file"`
	Title  string `json:"title"`
	Number int    `json:"number,omitempty"`
	URL    string `json:"url,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the guide was filed (or previewed).
func (r Result) Succeeded() bool { return r.Error == "" }

// Batch is the outcome of a SubmitDir run.
type Batch struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Failures returns the results that did not succeed.
func (b Batch) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Submitter turns markdown guides into tracker issues.
type Submitter struct {
	client  Client
	fs      afero.Fs
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSubmitter creates a Submitter that waits at least pacing between
// create calls. A non-positive pacing uses DefaultPacing.
func NewSubmitter(client Client, fsys afero.Fs, pacing time.Duration, logger *slog.Logger) *Submitter {
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		client:  client,
		fs:      fsys,
		limiter: rate.NewLimiter(rate.Every(pacing), 1),
		logger:  logger,
	}
}

// SubmitDir files one issue per markdown file in dir, in name order, up to
// opts.Limit files. Individual failures are recorded and the run continues;
// only a context error or an unreadable directory aborts it.
func (s *Submitter) SubmitDir(ctx context.Context, dir string, opts Options) (Batch, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return Batch{}, ErrMissingRepository
	}
	if len(opts.Labels) == 0 {
		opts.Labels = DefaultLabels
	}

	files, err := s.guides(dir)
	if err != nil {
		return Batch{}, err
	}
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}

	s.logger.InfoContext(ctx, "submitting guides",
		slog.Int("files", len(files)),
		slog.String("repo", opts.Owner+"/"+opts.Repo),
		slog.Bool("dry_run", opts.DryRun))

	batch := Batch{Results: make([]Result, 0, len(files))}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		res := s.submitFile(ctx, filepath.Join(dir, name), opts)
		if res.Succeeded() {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, res)
	}

	s.logger.InfoContext(ctx, "guide submission finished",
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed))
	return batch, nil
}

func (s *Submitter) guides(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read guides in %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Submitter) submitFile(ctx context.Context, path string, opts Options) Result {
	res := Result{File: filepath.Base(path), DryRun: opts.DryRun}
	log := s.logger.With(slog.String("file", res.File))

	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		res.Error = err.Error()
		log.ErrorContext(ctx, "failed to read guide", slog.String("error", err.Error()))
		return res
	}

	issue := BuildIssue(res.File, string(content), opts)
	res.Title = issue.Title

	if opts.DryRun {
		log.InfoContext(ctx, "dry run: issue would be created", slog.String("title", issue.Title))
		return res
	}

	if err := s.limiter.Wait(ctx); err != nil {
		res.Error = err.Error()
		return res
	}

	created, err := s.client.CreateIssue(ctx, opts.Owner, opts.Repo, issue)
	if err != nil {
		res.Error = err.Error()
		log.ErrorContext(ctx, "failed to create issue", slog.String("error", err.Error()))
		return res
	}
	res.Number = created.Number
	res.URL = created.URL
	log.InfoContext(ctx, "issue created", slog.Int("number", created.Number), slog.String("url", created.URL))
	return res
}

// BuildIssue converts the markdown guide named file into an Issue: the
// first level-one heading becomes the title (the file stem otherwise),
// relative image links are rewritten to raw-content URLs and a footer is
// appended.
func BuildIssue(file, content string, opts Options) Issue {
	title := strings.TrimSuffix(file, filepath.Ext(file))
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}

	body := RewriteImageLinks(content, opts) + footer(opts)
	return Issue{
		Title:     title,
		Body:      body,
		Labels:    opts.Labels,
		Assignees: opts.Assignees,
	}
}

// RawBaseURL is the raw-content URL under which the output directory of
// the repository is served.
func RawBaseURL(opts Options) string {
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}
	base := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", opts.Owner, opts.Repo, branch)
	if root := strings.Trim(filepath.ToSlash(opts.ContentRoot), "/"); root != "" && root != "." {
		base += "/" + root
	}
	return base
}

// RewriteImageLinks replaces image links of the form ![alt](../<dir>/file),
// for each dir in opts.ImageDirs, with absolute raw-content URLs.
func RewriteImageLinks(content string, opts Options) string {
	if len(opts.ImageDirs) == 0 {
		return content
	}
	quoted := make([]string, len(opts.ImageDirs))
	for i, d := range opts.ImageDirs {
		quoted[i] = regexp.QuoteMeta(d)
	}
	pattern := regexp.MustCompile(`!\[([^\]]*)\]\(\.\./(` + strings.Join(quoted, "|") + `)/([^)]+)\)`)
	return pattern.ReplaceAllString(content, "![$1]("+RawBaseURL(opts)+"/$2/$3)")
}

func footer(opts Options) string {
	return fmt.Sprintf("\n\n---\n\n_This issue was generated automatically by stylebatch_ - [%s/%s](https://github.com/%s/%s)",
		opts.Owner, opts.Repo, opts.Owner, opts.Repo)
}
