package tracker_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/mocks"
	"github.com/phrazzld/stylebatch/internal/platform/logger"
	"github.com/phrazzld/stylebatch/internal/tracker"
)

const guide = `# Lounge Chair (Acme) modeling guide

![original](../raw/7_acme_chair_lounge_chair.jpg)

| Style | Preview |
|---|---|
| cartoony | ![cartoony](../transformed/7_acme_chair_lounge_chair_cartoony.png) |

![external](https://example.com/x.png)
`

func baseOptions() tracker.Options {
	return tracker.Options{
		Owner:       "acme",
		Repo:        "guides",
		Branch:      "release",
		ContentRoot: "output",
		ImageDirs:   []string{"raw", "transformed"},
	}
}

func writeGuides(t *testing.T, fsys afero.Fs, names ...string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll("/out/documents", 0o755))
	for _, n := range names {
		require.NoError(t, afero.WriteFile(fsys, "/out/documents/"+n, []byte(guide), 0o644))
	}
	require.NoError(t, afero.WriteFile(fsys, "/out/documents/notes.txt", []byte("ignored"), 0o644))
}

func TestBuildIssue(t *testing.T) {
	t.Parallel()

	opts := baseOptions()
	opts.Labels = []string{"roblox"}
	opts.Assignees = []string{"octocat"}

	issue := tracker.BuildIssue("7_acme.md", guide, opts)

	assert.Equal(t, "Lounge Chair (Acme) modeling guide", issue.Title)
	assert.Contains(t, issue.Body, "![original](https://raw.githubusercontent.com/acme/guides/release/output/raw/7_acme_chair_lounge_chair.jpg)")
	assert.Contains(t, issue.Body, "![cartoony](https://raw.githubusercontent.com/acme/guides/release/output/transformed/7_acme_chair_lounge_chair_cartoony.png)")
	assert.Contains(t, issue.Body, "![external](https://example.com/x.png)")
	assert.NotContains(t, issue.Body, "](../")
	assert.True(t, strings.HasSuffix(issue.Body, "[acme/guides](https://github.com/acme/guides)"))
	assert.Equal(t, []string{"roblox"}, issue.Labels)
	assert.Equal(t, []string{"octocat"}, issue.Assignees)
}

func TestBuildIssue_TitleFallback(t *testing.T) {
	t.Parallel()

	issue := tracker.BuildIssue("9_bed.md", "no heading here\n## sub heading", baseOptions())
	assert.Equal(t, "9_bed", issue.Title)
}

func TestRawBaseURL(t *testing.T) {
	t.Parallel()

	opts := tracker.Options{Owner: "o", Repo: "r"}
	assert.Equal(t, "https://raw.githubusercontent.com/o/r/main", tracker.RawBaseURL(opts))

	opts.ContentRoot = "./"
	assert.Equal(t, "https://raw.githubusercontent.com/o/r/main", tracker.RawBaseURL(opts))

	opts.ContentRoot = "/data/output/"
	opts.Branch = "dev"
	assert.Equal(t, "https://raw.githubusercontent.com/o/r/dev/data/output", tracker.RawBaseURL(opts))
}

func TestSubmitDir(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeGuides(t, fsys, "a.md", "b.md", "c.md")

	client := &mocks.TestifyMockTrackerClient{}
	client.On("CreateIssue", mock.Anything, "acme", "guides", mock.MatchedBy(func(i tracker.Issue) bool {
		return assert.ObjectsAreEqual(tracker.DefaultLabels, i.Labels)
	})).Return(&tracker.Created{Number: 1, URL: "https://github.com/acme/guides/issues/1"}, nil).Once()
	client.On("CreateIssue", mock.Anything, "acme", "guides", mock.Anything).
		Return(nil, errors.New("HTTP 422")).Once()
	client.On("CreateIssue", mock.Anything, "acme", "guides", mock.Anything).
		Return(&tracker.Created{Number: 3, URL: "https://github.com/acme/guides/issues/3"}, nil).Once()

	s := tracker.NewSubmitter(client, fsys, time.Millisecond, logger.Discard())
	batch, err := s.SubmitDir(context.Background(), "/out/documents", baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "a.md", batch.Results[0].File)
	assert.Equal(t, 1, batch.Results[0].Number)
	assert.Equal(t, "HTTP 422", batch.Results[1].Error)
	assert.Equal(t, 3, batch.Results[2].Number)

	failures := batch.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b.md", failures[0].File)
	client.AssertNumberOfCalls(t, "CreateIssue", 3)
}

func TestSubmitDir_LimitAndDryRun(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeGuides(t, fsys, "a.md", "b.md", "c.md")

	client := &mocks.TestifyMockTrackerClient{}
	opts := baseOptions()
	opts.Limit = 2
	opts.DryRun = true

	batch, err := tracker.NewSubmitter(client, fsys, 0, logger.Discard()).SubmitDir(context.Background(), "/out/documents", opts)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Succeeded)
	require.Len(t, batch.Results, 2)
	assert.True(t, batch.Results[0].DryRun)
	assert.Equal(t, "Lounge Chair (Acme) modeling guide", batch.Results[1].Title)
	client.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitDir_Pacing(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeGuides(t, fsys, "a.md", "b.md", "c.md")

	client := &mocks.TestifyMockTrackerClient{}
	client.On("CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&tracker.Created{Number: 1}, nil)

	pacing := 40 * time.Millisecond
	start := time.Now()
	_, err := tracker.NewSubmitter(client, fsys, pacing, logger.Discard()).
		SubmitDir(context.Background(), "/out/documents", baseOptions())
	require.NoError(t, err)

	// The first call goes through immediately; the next two wait.
	assert.GreaterOrEqual(t, time.Since(start), 2*pacing-5*time.Millisecond)
}

func TestSubmitDir_Errors(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := tracker.NewSubmitter(&mocks.TestifyMockTrackerClient{}, fsys, 0, logger.Discard())

	_, err := s.SubmitDir(context.Background(), "/out/documents", tracker.Options{Repo: "guides"})
	assert.ErrorIs(t, err, tracker.ErrMissingRepository)

	_, err = s.SubmitDir(context.Background(), "/missing", baseOptions())
	assert.Error(t, err)

	writeGuides(t, fsys, "a.md")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SubmitDir(ctx, "/out/documents", baseOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
