// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire

import "encoding/json"

// Method IDs for the farcall service. The set is fixed: function dispatch
// happens inside MethodExecute via the call envelope, not by minting new
// method IDs.
const (
	MethodExecute    uint32 = 1  // execute a registered function
	MethodHandleRFC  uint32 = 2  // service a legacy inbound call
	MethodReadFile   uint32 = 3  // read a file from the environment
	MethodWriteFile  uint32 = 4  // write a file into the environment
	MethodDeleteFile uint32 = 5  // delete a file or directory tree
	MethodListDir    uint32 = 6  // list directory contents
	MethodFileExists uint32 = 7  // probe a path
	MethodMakeDir    uint32 = 8  // create a directory
	MethodMoveFile   uint32 = 9  // rename or move a file
	MethodCopyFile   uint32 = 10 // copy a file or directory tree
	MethodCommand    uint32 = 11 // run a command
	MethodHealth     uint32 = 12 // report service health
	MethodStatus     uint32 = 13 // report service status and counters
	MethodPing       uint32 = 14 // connectivity probe
)

var methodNames = map[uint32]string{
	MethodExecute:    "execute",
	MethodHandleRFC:  "handle-rfc",
	MethodReadFile:   "read-file",
	MethodWriteFile:  "write-file",
	MethodDeleteFile: "delete-file",
	MethodListDir:    "list-dir",
	MethodFileExists: "file-exists",
	MethodMakeDir:    "make-dir",
	MethodMoveFile:   "move-file",
	MethodCopyFile:   "copy-file",
	MethodCommand:    "command",
	MethodHealth:     "health",
	MethodStatus:     "status",
	MethodPing:       "ping",
}

var methodIDs = func() map[string]uint32 {
	out := make(map[string]uint32, len(methodNames))
	for id, name := range methodNames {
		out[name] = id
	}
	return out
}()

// MethodName returns the registered name for a method ID, or "" if the ID is
// not part of the service.
func MethodName(id uint32) string { return methodNames[id] }

// MethodID returns the method ID for a registered name, and reports whether
// the name is part of the service.
func MethodID(name string) (uint32, bool) {
	id, ok := methodIDs[name]
	return id, ok
}

// Status is embedded in every operation response. A failed operation reports
// success=false with a message and an error-kind label; it is not a protocol
// error and does not disturb the channel.
type Status struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
}

// OK returns a successful Status.
func OK() Status { return Status{Success: true} }

// Failure returns a failed Status with the given error-kind label and
// message.
func Failure(errType, message string) Status {
	return Status{ErrorMessage: message, ErrorType: errType}
}

// ReadFileRequest asks for the contents of a file. A MaxSize of 0 means no
// size ceiling. When Binary is false the contents are returned as text.
type ReadFileRequest struct {
	Path    string `json:"path"`
	Binary  bool   `json:"binary,omitempty"`
	MaxSize int64  `json:"max_size,omitempty"`
}

// ReadFileResponse carries file contents in exactly one of Text or Data,
// matching the Binary flag of the request.
type ReadFileResponse struct {
	Status
	Text string `json:"text_content,omitempty"`
	Data []byte `json:"binary_content,omitempty"`
	Size int64  `json:"file_size,omitempty"`
}

// WriteFileRequest writes Text or Data (exactly one set) to Path.
type WriteFileRequest struct {
	Path       string  `json:"path"`
	Text       *string `json:"text_content,omitempty"`
	Data       []byte  `json:"binary_content,omitempty"`
	CreateDirs bool    `json:"create_directories,omitempty"`
	Append     bool    `json:"append,omitempty"`
}

// WriteFileResponse reports the number of bytes written.
type WriteFileResponse struct {
	Status
	BytesWritten int64 `json:"bytes_written"`
}

// DeleteFileRequest removes Path. Directories require Recursive.
type DeleteFileRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
}

// DeleteFileResponse reports the outcome of a delete.
type DeleteFileResponse struct {
	Status
}

// ListDirRequest lists the contents of a directory.
type ListDirRequest struct {
	Path          string   `json:"path"`
	Recursive     bool     `json:"recursive,omitempty"`
	IncludeHidden bool     `json:"include_hidden,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified_unix"`
	Mode     string `json:"mode"`
}

// ListDirResponse carries the matching directory entries.
type ListDirResponse struct {
	Status
	Entries []FileInfo `json:"entries,omitempty"`
}

// FileExistsRequest probes a path.
type FileExistsRequest struct {
	Path string `json:"path"`
}

// FileExistsResponse reports whether the path exists and what it is.
type FileExistsResponse struct {
	Status
	Exists bool `json:"exists"`
	IsDir  bool `json:"is_dir"`
	IsFile bool `json:"is_file"`
}

// MakeDirRequest creates a directory, and with Parents set, any missing
// ancestors.
type MakeDirRequest struct {
	Path    string `json:"path"`
	Parents bool   `json:"parents,omitempty"`
}

// MakeDirResponse reports the outcome of a directory creation.
type MakeDirResponse struct {
	Status
}

// MoveFileRequest renames Source to Destination.
type MoveFileRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Overwrite   bool   `json:"overwrite,omitempty"`
}

// MoveFileResponse reports the outcome of a move.
type MoveFileResponse struct {
	Status
}

// CopyFileRequest copies Source to Destination. Directories require
// Recursive.
type CopyFileRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Overwrite   bool   `json:"overwrite,omitempty"`
	Recursive   bool   `json:"recursive,omitempty"`
}

// CopyFileResponse reports the outcome of a copy.
type CopyFileResponse struct {
	Status
}

// CommandRequest runs a program in the execution environment. Env entries
// are merged over the service's environment. A TimeoutMillis of 0 applies
// the service default.
type CommandRequest struct {
	Command       string            `json:"command"`
	Args          []string          `json:"args,omitempty"`
	Dir           string            `json:"dir,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	TimeoutMillis int64             `json:"timeout_ms,omitempty"`
	ExecutionID   string            `json:"execution_id,omitempty"`
}

// CommandResponse reports the outcome of a command. ExitCode is -1 when the
// program could not be started or was terminated by the timeout.
type CommandResponse struct {
	Status
	ExitCode      int    `json:"exit_code"`
	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
	ElapsedMillis int64  `json:"elapsed_ms"`
	ExecutionID   string `json:"execution_id,omitempty"`
}

// HealthRequest asks for a service health snapshot. Detailed adds process
// resource usage.
type HealthRequest struct {
	Detailed bool `json:"detailed,omitempty"`
}

// HealthResponse is the service's view of its own condition.
type HealthResponse struct {
	Healthy        bool              `json:"healthy"`
	State          string            `json:"state"`
	UptimeSeconds  float64           `json:"uptime_seconds"`
	MemoryRSSBytes uint64            `json:"memory_rss_bytes,omitempty"`
	CPUPercent     float64           `json:"cpu_percent,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// StatusRequest asks for service counters, and optionally its configuration
// snapshot.
type StatusRequest struct {
	IncludeConfig bool `json:"include_config,omitempty"`
}

// StatusResponse reports the service counters since startup.
type StatusResponse struct {
	Status
	UptimeSeconds   float64           `json:"uptime_seconds"`
	Requests        int64             `json:"requests"`
	Succeeded       int64             `json:"succeeded"`
	Failed          int64             `json:"failed"`
	AvgElapsedMilli float64           `json:"avg_elapsed_ms"`
	Targets         []string          `json:"targets,omitempty"`
	Config          map[string]string `json:"config,omitempty"`
}

// PingRequest is a connectivity probe.
type PingRequest struct {
	Message        string `json:"message,omitempty"`
	SentUnixMillis int64  `json:"sent_unix_ms,omitempty"`
}

// PingResponse echoes the probe and reports the observed latency.
type PingResponse struct {
	Message            string `json:"message"`
	SentUnixMillis     int64  `json:"sent_unix_ms,omitempty"`
	ReceivedUnixMillis int64  `json:"received_unix_ms"`
	LatencyMillis      int64  `json:"latency_ms"`
}

// An RFCRequest is a call initiated by the remote peer over the legacy
// inbound surface.
type RFCRequest struct {
	Method    string            `json:"method"`
	Path      string            `json:"path,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// An RFCResponse is the reply to an inbound legacy call.
type RFCResponse struct {
	Status
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// A LegacyCall is the body shape used by the legacy HTTP interface: a call
// target with plain JSON arguments.
type LegacyCall struct {
	Module   string         `json:"module"`
	Function string         `json:"function"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
}
