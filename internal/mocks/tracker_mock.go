package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/phrazzld/stylebatch/internal/tracker"
)

// TestifyMockTrackerClient is a mock of tracker.Client for use with testify/mock
type TestifyMockTrackerClient struct {
	mock.Mock
}

// CreateIssue is a mock implementation of tracker.Client.CreateIssue
func (m *TestifyMockTrackerClient) CreateIssue(ctx context.Context, owner, repo string, issue tracker.Issue) (*tracker.Created, error) {
	args := m.Called(ctx, owner, repo, issue)
	if created, ok := args.Get(0).(*tracker.Created); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}
