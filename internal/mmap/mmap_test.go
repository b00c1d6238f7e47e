// Copyright 2026 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "corpus.xml")
	want := []byte("<dblp><article/></dblp>")
	require.NoError(t, os.WriteFile(path, want, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, len(want), m.Len())
	require.Equal(t, want, m.Bytes())

	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())

	// Close is idempotent.
	require.NoError(t, m.Close())
}

func TestOpen_empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.xml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	require.Zero(t, m.Len())
	require.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpen_missing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.xml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
