// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/farcall/farcall/wire"
)

// File and directory operations. These cross a process boundary, so each
// validates its preconditions explicitly and reports a structured failure
// instead of an error: a missing file on the serving side must degrade the
// call, not break the channel.

func (s *Server) readFile(ctx context.Context, req wire.ReadFileRequest) wire.ReadFileResponse {
	fi, err := os.Stat(req.Path)
	if err != nil {
		return wire.ReadFileResponse{Status: fileFailure("file not found: "+req.Path, err)}
	}
	if req.MaxSize > 0 && fi.Size() > req.MaxSize {
		return wire.ReadFileResponse{Status: wire.Failure("file-too-large",
			fmt.Sprintf("file too large: %d > %d", fi.Size(), req.MaxSize))}
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return wire.ReadFileResponse{Status: fileFailure("read "+req.Path, err)}
	}
	s.log.Debug().Str("path", req.Path).Int("size", len(data)).Msg("file read")
	if req.Binary {
		return wire.ReadFileResponse{Status: wire.OK(), Data: data, Size: int64(len(data))}
	}
	return wire.ReadFileResponse{Status: wire.OK(), Text: string(data), Size: int64(len(data))}
}

func (s *Server) writeFile(ctx context.Context, req wire.WriteFileRequest) wire.WriteFileResponse {
	var data []byte
	if req.Text != nil {
		data = []byte(*req.Text)
	} else {
		data = req.Data
	}
	if req.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
			return wire.WriteFileResponse{Status: fileFailure("create directories for "+req.Path, err)}
		}
	}
	flags := os.O_WRONLY | os.O_CREATE
	if req.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(req.Path, flags, 0o644)
	if err != nil {
		return wire.WriteFileResponse{Status: fileFailure("write "+req.Path, err)}
	}
	nw, err := f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return wire.WriteFileResponse{Status: fileFailure("write "+req.Path, err), BytesWritten: int64(nw)}
	}
	s.log.Debug().Str("path", req.Path).Int("size", nw).Msg("file written")
	return wire.WriteFileResponse{Status: wire.OK(), BytesWritten: int64(nw)}
}

func (s *Server) deleteFile(ctx context.Context, req wire.DeleteFileRequest) wire.DeleteFileResponse {
	fi, err := os.Lstat(req.Path)
	if err != nil {
		return wire.DeleteFileResponse{Status: fileFailure("path not found: "+req.Path, err)}
	}
	switch {
	case !fi.IsDir():
		err = os.Remove(req.Path)
	case req.Recursive:
		err = os.RemoveAll(req.Path)
	default:
		// An os.Remove on a non-empty directory fails; on an empty one it
		// succeeds, matching the plain rmdir contract.
		err = os.Remove(req.Path)
	}
	if err != nil {
		return wire.DeleteFileResponse{Status: fileFailure("delete "+req.Path, err)}
	}
	s.log.Debug().Str("path", req.Path).Msg("path deleted")
	return wire.DeleteFileResponse{Status: wire.OK()}
}

func (s *Server) listDir(ctx context.Context, req wire.ListDirRequest) wire.ListDirResponse {
	fi, err := os.Stat(req.Path)
	if err != nil || !fi.IsDir() {
		return wire.ListDirResponse{Status: wire.Failure("directory-not-found", "directory not found: "+req.Path)}
	}

	var entries []wire.FileInfo
	add := func(path string, d fs.DirEntry) {
		if !req.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			return
		}
		if len(req.Patterns) > 0 && !matchAny(req.Patterns, d.Name()) {
			return
		}
		info, err := d.Info()
		if err != nil {
			return // entry disappeared while listing
		}
		size := info.Size()
		if d.IsDir() {
			size = 0
		}
		entries = append(entries, wire.FileInfo{
			Name:     d.Name(),
			Path:     path,
			IsDir:    d.IsDir(),
			Size:     size,
			Modified: info.ModTime().Unix(),
			Mode:     info.Mode().String(),
		})
	}

	if req.Recursive {
		err = filepath.WalkDir(req.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == req.Path {
				return err
			}
			if !req.IncludeHidden && strings.HasPrefix(d.Name(), ".") && d.IsDir() {
				return filepath.SkipDir
			}
			add(path, d)
			return nil
		})
	} else {
		var ds []fs.DirEntry
		ds, err = os.ReadDir(req.Path)
		for _, d := range ds {
			add(filepath.Join(req.Path, d.Name()), d)
		}
	}
	if err != nil {
		return wire.ListDirResponse{Status: fileFailure("list "+req.Path, err)}
	}
	return wire.ListDirResponse{Status: wire.OK(), Entries: entries}
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, err := filepath.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Server) fileExists(ctx context.Context, req wire.FileExistsRequest) wire.FileExistsResponse {
	fi, err := os.Stat(req.Path)
	if err != nil {
		return wire.FileExistsResponse{Status: wire.OK()}
	}
	return wire.FileExistsResponse{
		Status: wire.OK(),
		Exists: true,
		IsDir:  fi.IsDir(),
		IsFile: fi.Mode().IsRegular(),
	}
}

func (s *Server) makeDir(ctx context.Context, req wire.MakeDirRequest) wire.MakeDirResponse {
	var err error
	if req.Parents {
		err = os.MkdirAll(req.Path, 0o755)
	} else if err = os.Mkdir(req.Path, 0o755); os.IsExist(err) {
		err = nil // match mkdir -p style tolerance for an existing directory
	}
	if err != nil {
		return wire.MakeDirResponse{Status: fileFailure("create directory "+req.Path, err)}
	}
	return wire.MakeDirResponse{Status: wire.OK()}
}

func (s *Server) moveFile(ctx context.Context, req wire.MoveFileRequest) wire.MoveFileResponse {
	if _, err := os.Stat(req.Source); err != nil {
		return wire.MoveFileResponse{Status: fileFailure("source not found: "+req.Source, err)}
	}
	if _, err := os.Stat(req.Destination); err == nil && !req.Overwrite {
		return wire.MoveFileResponse{Status: wire.Failure("destination-exists",
			"destination exists: "+req.Destination)}
	}
	if err := os.Rename(req.Source, req.Destination); err != nil {
		return wire.MoveFileResponse{Status: fileFailure("move "+req.Source, err)}
	}
	s.log.Debug().Str("source", req.Source).Str("destination", req.Destination).Msg("path moved")
	return wire.MoveFileResponse{Status: wire.OK()}
}

func (s *Server) copyFile(ctx context.Context, req wire.CopyFileRequest) wire.CopyFileResponse {
	src, err := os.Stat(req.Source)
	if err != nil {
		return wire.CopyFileResponse{Status: fileFailure("source not found: "+req.Source, err)}
	}
	if _, err := os.Stat(req.Destination); err == nil && !req.Overwrite {
		return wire.CopyFileResponse{Status: wire.Failure("destination-exists",
			"destination exists: "+req.Destination)}
	}
	if src.IsDir() && !req.Recursive {
		return wire.CopyFileResponse{Status: wire.Failure("is-directory",
			"cannot copy directory without recursive flag: " + req.Source)}
	}
	if src.IsDir() {
		err = copyTree(req.Source, req.Destination)
	} else {
		err = copyOne(req.Source, req.Destination, src.Mode())
	}
	if err != nil {
		return wire.CopyFileResponse{Status: fileFailure("copy "+req.Source, err)}
	}
	s.log.Debug().Str("source", req.Source).Str("destination", req.Destination).Msg("path copied")
	return wire.CopyFileResponse{Status: wire.OK()}
}

func copyOne(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyOne(path, target, info.Mode())
	})
}

// fileFailure builds a failure status for an I/O error, mapping the common
// not-found case to its own kind label.
func fileFailure(msg string, err error) wire.Status {
	kind := "io-error"
	if os.IsNotExist(err) {
		kind = "not-found"
	}
	return wire.Failure(kind, msg+": "+err.Error())
}
