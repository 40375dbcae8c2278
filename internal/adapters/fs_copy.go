package adapters

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// copyFile copies src to dst, creating parent directories.
func copyFile(src string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyMatches copies files below base into target preserving their path
// relative to base.
func copyMatches(base string, files []string, target string) error {
	for _, file := range files {
		rel, err := filepath.Rel(base, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(file)
		}
		if err := copyFile(file, filepath.Join(target, rel)); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to copy stub file %s", file)).
				WithCause(err)
		}
	}
	return nil
}

// writeStream stores r at path, writing to a temporary sibling first.
func writeStream(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// containedPath joins the slash separated name onto root and reports
// whether the result stays inside root.
func containedPath(root string, name string) (string, bool) {
	cleanRoot := filepath.Clean(root)
	dest := filepath.Join(cleanRoot, filepath.FromSlash(name))
	if dest != cleanRoot && !strings.HasPrefix(dest, cleanRoot+string(os.PathSeparator)) {
		return "", false
	}
	return dest, true
}

// unzip extracts archive into target, rejecting entries that escape it.
func unzip(archive string, target string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open stub archive").
			WithCause(err)
	}
	defer reader.Close()
	for _, file := range reader.File {
		dest, ok := containedPath(target, file.Name)
		if !ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("illegal path in stub archive: %s", file.Name))
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractZipEntry(file, dest); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to extract %s", file.Name)).
				WithCause(err)
		}
	}
	return nil
}

func extractZipEntry(file *zip.File, dest string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeStream(dest, rc)
}

// CopyDirectory copies every file below src into dst.
func CopyDirectory(src string, dst string) error {
	var files []string
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan directory "+src).
			WithCause(err)
	}
	return copyMatches(src, files, dst)
}
