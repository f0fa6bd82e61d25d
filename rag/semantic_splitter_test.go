package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/ragflow/types"
)

func newTestSemanticSplitter(maxTokens int) *SemanticSplitter {
	return NewSemanticSplitter(newTestSplitter(maxTokens, 5), zap.NewNop())
}

func TestSemanticSplitJavaScriptFunctions(t *testing.T) {
	s := newTestSemanticSplitter(512)

	pieces, err := s.Split("app.js", "function a(){}\nfunction b(){}")
	require.NoError(t, err)
	require.Len(t, pieces, 2)

	assert.Equal(t, "function a(){}", pieces[0].Content)
	assert.Equal(t, "a", pieces[0].Name)
	assert.Equal(t, types.RoleFunction, pieces[0].Role)
	assert.Equal(t, types.SplitAST, pieces[0].Strategy)
	assert.True(t, pieces[0].CompleteBlock)

	assert.Equal(t, "function b(){}", pieces[1].Content)
	assert.Equal(t, "b", pieces[1].Name)
}

func TestSemanticSplitJavaScriptMixedDeclarations(t *testing.T) {
	s := newTestSemanticSplitter(512)

	source := `const express = require('express');
const app = express();

class UserStore {
  find(id) { return this.users[id]; }
}

const lookup = (id) => store.find(id);

app.get('/users/:id', (req, res) => {
  res.json(lookup(req.params.id));
});
`
	pieces, err := s.Split("server.js", source)
	require.NoError(t, err)
	require.Len(t, pieces, 3)

	assert.Equal(t, "UserStore", pieces[0].Name)
	assert.Equal(t, types.RoleClass, pieces[0].Role)
	assert.True(t, strings.HasPrefix(pieces[0].Content, "const express"),
		"preamble should ride with the first unit")

	assert.Equal(t, "lookup", pieces[1].Name)
	assert.Equal(t, types.RoleFunction, pieces[1].Role)

	assert.Equal(t, "GET /users/:id", pieces[2].Name)
	assert.Equal(t, types.RoleRoute, pieces[2].Role)
	assert.True(t, strings.HasSuffix(pieces[2].Content, ");"))
}

func TestSemanticSplitGoSource(t *testing.T) {
	s := newTestSemanticSplitter(512)

	source := `package store

import "errors"

// Store keeps things.
type Store struct {
	items map[string]string
}

// Get returns the item for key.
func (s *Store) Get(key string) (string, error) {
	v, ok := s.items[key]
	if !ok {
		return "", errors.New("missing")
	}
	return v, nil
}

func New() *Store {
	return &Store{items: map[string]string{}}
}
`
	pieces, err := s.Split("store.go", source)
	require.NoError(t, err)
	require.Len(t, pieces, 3)

	assert.Equal(t, "Store", pieces[0].Name)
	assert.Equal(t, types.RoleClass, pieces[0].Role)
	assert.Contains(t, pieces[0].Content, "package store",
		"package clause and imports ride with the first unit")
	assert.Contains(t, pieces[0].Content, `import "errors"`)
	assert.Contains(t, pieces[0].Content, "// Store keeps things.")

	assert.Equal(t, "Store.Get", pieces[1].Name)
	assert.Equal(t, types.RoleFunction, pieces[1].Role)
	assert.Contains(t, pieces[1].Content, "// Get returns the item for key.")

	assert.Equal(t, "New", pieces[2].Name)
}

func TestSemanticSplitPythonSource(t *testing.T) {
	s := newTestSemanticSplitter(512)

	source := `import os

BASE = os.environ.get("BASE", ".")


class Loader:
    def read(self, name):
        return open(os.path.join(BASE, name)).read()


@cached
def load_all(names):
    return [Loader().read(n) for n in names]
`
	pieces, err := s.Split("loader.py", source)
	require.NoError(t, err)
	require.Len(t, pieces, 2)

	assert.Equal(t, "Loader", pieces[0].Name)
	assert.Equal(t, types.RoleClass, pieces[0].Role)
	assert.Contains(t, pieces[0].Content, "import os")

	assert.Equal(t, "load_all", pieces[1].Name)
	assert.Equal(t, types.RoleFunction, pieces[1].Role)
	assert.True(t, strings.HasPrefix(pieces[1].Content, "@cached"),
		"decorator should travel with its function")
}

func TestSemanticSplitOversizedUnitDegrades(t *testing.T) {
	s := newTestSemanticSplitter(10)

	var body strings.Builder
	body.WriteString("function big() {\n")
	for i := 0; i < 30; i++ {
		body.WriteString("  doWork();\n")
	}
	body.WriteString("}")

	pieces, err := s.Split("big.js", body.String())
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	for _, p := range pieces {
		assert.Equal(t, "big", p.Name)
		assert.Equal(t, types.SplitFallback, p.Strategy)
		assert.False(t, p.CompleteBlock)
		assert.LessOrEqual(t, p.TokenCount, 10)
	}
}

func TestSemanticSplitUnsupportedExtension(t *testing.T) {
	s := newTestSemanticSplitter(512)

	_, err := s.Split("README.md", "# Title\n\nSome prose.")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestSemanticSplitNoDeclarations(t *testing.T) {
	s := newTestSemanticSplitter(512)

	_, err := s.Split("empty.js", "const x = 1;\n")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestSemanticSplitGoParseFailure(t *testing.T) {
	s := newTestSemanticSplitter(512)

	_, err := s.Split("broken.go", "package x\nfunc {{{")
	require.Error(t, err)
	assert.Equal(t, types.ErrParseFailure, types.GetErrorCode(err))
}

func TestSplitDocumentFallsBackToTokens(t *testing.T) {
	s := newTestSemanticSplitter(20)

	pieces := s.SplitDocument("notes.md", words(50))
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.Equal(t, types.SplitToken, p.Strategy)
		assert.Equal(t, types.RoleNone, p.Role)
	}
}
