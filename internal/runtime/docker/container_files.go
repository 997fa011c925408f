package docker

import (
	"archive/tar"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// workspaceFile is placed in the container's working directory before start.
type workspaceFile struct {
	name string
	mode int64
	data []byte
}

// artifactMissingError means the compiler exited cleanly without writing the
// artifact the run stage needs.
type artifactMissingError struct {
	path string
}

func (e *artifactMissingError) Error() string {
	return fmt.Sprintf("no regular file at %s after a successful compile", e.path)
}

func (c *containerEngine) upload(ctx context.Context, containerID, workdir string, files []workspaceFile) error {
	if len(files) == 0 {
		return nil
	}

	archive, err := packWorkspace(files)
	if err != nil {
		return err
	}

	opts := container.CopyToContainerOptions{AllowOverwriteDirWithFile: true}
	if err := c.cli.CopyToContainer(ctx, containerID, workdir, archive, opts); err != nil {
		return fmt.Errorf("upload workspace: %w", err)
	}
	return nil
}

// packWorkspace lays files out flat in a tar stream. A zero mode means 0644.
func packWorkspace(files []workspaceFile) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	modTime := time.Now()
	for _, f := range files {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     f.name,
			Mode:     cmp.Or(f.mode, 0o644),
			Size:     int64(len(f.data)),
			ModTime:  modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("pack %s: %w", f.name, err)
		}
		if _, err := tw.Write(f.data); err != nil {
			return nil, fmt.Errorf("pack %s: %w", f.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finish workspace archive: %w", err)
	}
	return &buf, nil
}

// extractArtifact reads the file at artifactPath out of a stopped container.
// A path that does not exist, or is not a regular file, yields an
// *artifactMissingError.
func (c *containerEngine) extractArtifact(ctx context.Context, containerID, artifactPath string) ([]byte, error) {
	rc, _, err := c.cli.CopyFromContainer(ctx, containerID, artifactPath)
	if client.IsErrNotFound(err) {
		return nil, &artifactMissingError{path: artifactPath}
	}
	if err != nil {
		return nil, fmt.Errorf("copy %s out of container: %w", artifactPath, err)
	}
	defer rc.Close()

	want := path.Base(artifactPath)
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, &artifactMissingError{path: artifactPath}
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || path.Base(hdr.Name) != want {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", artifactPath, err)
		}
		return data, nil
	}
}
