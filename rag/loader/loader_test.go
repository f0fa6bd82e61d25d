package loader

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFilesystemLoaderWalks(t *testing.T) {
	fsys := fstest.MapFS{
		"main.go":                 {Data: []byte("package main")},
		"README.md":               {Data: []byte("# hi")},
		"go.mod":                  {Data: []byte("module x")},
		"src/app.ts":              {Data: []byte("export {}")},
		"config/app.yaml":         {Data: []byte("a: 1")},
		"Dockerfile":              {Data: []byte("FROM scratch")},
		"node_modules/x/index.js": {Data: []byte("junk")},
		".git/HEAD":               {Data: []byte("ref")},
		"vendor/lib/lib.go":       {Data: []byte("package lib")},
		"assets/logo.png":         {Data: []byte{0x89, 0x50}},
		".hidden/file.go":         {Data: []byte("package hidden")},
	}

	l := NewFilesystemLoader(fsys, FilesystemConfig{}, zap.NewNop())
	docs, err := l.Load(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	assert.ElementsMatch(t, []string{
		"main.go", "README.md", "go.mod", "src/app.ts", "config/app.yaml", "Dockerfile",
	}, paths)

	for _, d := range docs {
		assert.NotEmpty(t, d.Content)
	}
}

func TestFilesystemLoaderSizeCap(t *testing.T) {
	fsys := fstest.MapFS{
		"small.go": {Data: []byte("package small")},
		"large.go": {Data: []byte(strings.Repeat("x", 100))},
	}

	l := NewFilesystemLoader(fsys, FilesystemConfig{MaxFileSize: 50}, zap.NewNop())
	docs, err := l.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "small.go", docs[0].Path)
}

func TestFilesystemLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewFilesystemLoader(fstest.MapFS{"a.go": {Data: []byte("package a")}}, FilesystemConfig{}, zap.NewNop())
	_, err := l.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
