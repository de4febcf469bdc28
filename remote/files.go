// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote

import (
	"context"
	"time"

	"github.com/farcall/farcall/wire"
)

// Typed helpers for the file, process, and diagnostic operations of the
// service. Each ensures a connection, performs one JSON round trip, and
// surfaces the response as delivered: operational failures are reported in
// the embedded Status, not as an error.

// ReadFile reads a file from the execution environment.
func (c *Client) ReadFile(ctx context.Context, req wire.ReadFileRequest) (*wire.ReadFileResponse, error) {
	return callJSON[wire.ReadFileResponse](ctx, c, wire.MethodReadFile, req)
}

// WriteFile writes a file into the execution environment.
func (c *Client) WriteFile(ctx context.Context, req wire.WriteFileRequest) (*wire.WriteFileResponse, error) {
	return callJSON[wire.WriteFileResponse](ctx, c, wire.MethodWriteFile, req)
}

// DeleteFile removes a file or directory tree in the execution environment.
func (c *Client) DeleteFile(ctx context.Context, req wire.DeleteFileRequest) (*wire.DeleteFileResponse, error) {
	return callJSON[wire.DeleteFileResponse](ctx, c, wire.MethodDeleteFile, req)
}

// ListDir lists directory contents in the execution environment.
func (c *Client) ListDir(ctx context.Context, req wire.ListDirRequest) (*wire.ListDirResponse, error) {
	return callJSON[wire.ListDirResponse](ctx, c, wire.MethodListDir, req)
}

// FileExists probes a path in the execution environment.
func (c *Client) FileExists(ctx context.Context, path string) (*wire.FileExistsResponse, error) {
	return callJSON[wire.FileExistsResponse](ctx, c, wire.MethodFileExists, wire.FileExistsRequest{Path: path})
}

// MakeDir creates a directory in the execution environment.
func (c *Client) MakeDir(ctx context.Context, req wire.MakeDirRequest) (*wire.MakeDirResponse, error) {
	return callJSON[wire.MakeDirResponse](ctx, c, wire.MethodMakeDir, req)
}

// MoveFile renames or moves a file in the execution environment.
func (c *Client) MoveFile(ctx context.Context, req wire.MoveFileRequest) (*wire.MoveFileResponse, error) {
	return callJSON[wire.MoveFileResponse](ctx, c, wire.MethodMoveFile, req)
}

// CopyFile copies a file or directory tree in the execution environment.
func (c *Client) CopyFile(ctx context.Context, req wire.CopyFileRequest) (*wire.CopyFileResponse, error) {
	return callJSON[wire.CopyFileResponse](ctx, c, wire.MethodCopyFile, req)
}

// ExecCommand runs a program in the execution environment.
func (c *Client) ExecCommand(ctx context.Context, req wire.CommandRequest) (*wire.CommandResponse, error) {
	return callJSON[wire.CommandResponse](ctx, c, wire.MethodCommand, req)
}

// Ping probes the serving peer, reporting the one-way latency it observed.
func (c *Client) Ping(ctx context.Context, message string) (*wire.PingResponse, error) {
	return callJSON[wire.PingResponse](ctx, c, wire.MethodPing, wire.PingRequest{
		Message:        message,
		SentUnixMillis: time.Now().UnixMilli(),
	})
}

// ServerHealth reports the serving peer's view of its own condition.
func (c *Client) ServerHealth(ctx context.Context, detailed bool) (*wire.HealthResponse, error) {
	return callJSON[wire.HealthResponse](ctx, c, wire.MethodHealth, wire.HealthRequest{Detailed: detailed})
}

// ServerStatus reports the serving peer's request counters, and optionally
// its configuration snapshot.
func (c *Client) ServerStatus(ctx context.Context, includeConfig bool) (*wire.StatusResponse, error) {
	return callJSON[wire.StatusResponse](ctx, c, wire.MethodStatus, wire.StatusRequest{IncludeConfig: includeConfig})
}
