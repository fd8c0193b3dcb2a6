// Package download fetches the primary image of each catalog record into
// the raw storage area. Each fetch runs under the download limiter, is
// retried on transient failures, and is skipped entirely when a valid copy
// of the image is already on disk.
package download
