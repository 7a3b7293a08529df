// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
	"github.com/AleutianAI/harbor/services/harbor/project"
)

func newProject(t *testing.T, cfg Config, fs fsevents.FileSystem, defaultLib string) *Project {
	t.Helper()
	p := New("test", cfg, fs, defaultLib, nil).(*Project)
	require.NoError(t, p.Init(context.Background()))
	return p
}

func TestProject_InitSeedsFromGlobs(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{
		"/src/a.ts":     "a",
		"/src/b.ts":     "b",
		"/src/note.md":  "n",
		"/lib/lib.d.ts": "decl",
	})

	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "/lib")

	assert.Equal(t, project.FileKindSource, p.FileKind("/src/a.ts"))
	assert.Equal(t, project.FileKindSource, p.FileKind("/src/b.ts"))
	assert.Equal(t, project.FileKindNone, p.FileKind("/src/note.md"))
	assert.Equal(t, project.FileKindReference, p.FileKind("/lib/lib.d.ts"))
}

func TestProject_ExcludesTrimSelection(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{
		"/src/a.ts":     "a",
		"/src/a_gen.ts": "g",
	})

	p := newProject(t, Config{
		Sources:  []string{"/src/*.ts"},
		Excludes: []string{"*_gen.ts"},
	}, fs, "")

	assert.Equal(t, project.FileKindSource, p.FileKind("/src/a.ts"))
	assert.Equal(t, project.FileKindNone, p.FileKind("/src/a_gen.ts"))
}

func TestProject_LiteralSourceOutsideListing(t *testing.T) {
	// The listing does not contain /elsewhere/x.ts, but it is readable.
	fs := fsevents.NewMemFS(map[string]string{
		"/elsewhere/x.ts": "x",
	})
	// MemFS lists everything it holds, so force the "outside listing" shape
	// with a literal path the globs would not otherwise select.
	p := newProject(t, Config{Sources: []string{"/elsewhere/x.ts"}}, fs, "")

	assert.Equal(t, project.FileKindSource, p.FileKind("/elsewhere/x.ts"))
}

func TestProject_InitFailsForUnreadableLiteral(t *testing.T) {
	fs := fsevents.NewMemFS(nil)

	p := New("orphan", Config{Sources: []string{"/missing.ts"}}, fs, "", nil)
	err := p.Init(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, fsevents.ErrFileNotFound)
}

func TestProject_InitRejectsBadConfig(t *testing.T) {
	fs := fsevents.NewMemFS(nil)

	p := New("bad", Config{}, fs, "", nil)
	err := p.Init(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProject_UpdateReplacesSelection(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{
		"/src/a.ts": "a",
		"/src/b.js": "b",
	})

	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "")
	require.Equal(t, project.FileKindSource, p.FileKind("/src/a.ts"))

	require.NoError(t, p.Update(context.Background(), Config{Sources: []string{"/src/*.js"}}))

	assert.Equal(t, project.FileKindNone, p.FileKind("/src/a.ts"))
	assert.Equal(t, project.FileKindSource, p.FileKind("/src/b.js"))
}

func TestProject_UpdateKeepsOldConfigOnParseError(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{"/src/a.ts": "a"})

	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "")

	err := p.Update(context.Background(), Config{})
	require.Error(t, err)

	// Still serving the previous selection.
	assert.Equal(t, project.FileKindSource, p.FileKind("/src/a.ts"))
}

func TestProject_ApplyChangesIncremental(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{"/src/a.ts": "a"})
	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "/lib")

	p.ApplyChanges([]fsevents.ChangeRecord{
		{Kind: fsevents.ChangeAdd, FileName: "/src/new.ts"},
		{Kind: fsevents.ChangeAdd, FileName: "/src/skip.md"},
		{Kind: fsevents.ChangeAdd, FileName: "/lib/es6.d.ts"},
		{Kind: fsevents.ChangeDelete, FileName: "/src/a.ts"},
	})

	assert.Equal(t, project.FileKindSource, p.FileKind("/src/new.ts"))
	assert.Equal(t, project.FileKindNone, p.FileKind("/src/skip.md"))
	assert.Equal(t, project.FileKindReference, p.FileKind("/lib/es6.d.ts"))
	assert.Equal(t, project.FileKindNone, p.FileKind("/src/a.ts"))
}

func TestProject_ApplyChangesResetReseeds(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{"/src/a.ts": "a"})
	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "")

	// Mutate the backing store without events, then deliver a reset.
	fs.Reset(map[string]string{"/src/fresh.ts": "f"})
	p.ApplyChanges([]fsevents.ChangeRecord{{Kind: fsevents.ChangeReset}})

	assert.Equal(t, project.FileKindNone, p.FileKind("/src/a.ts"))
	assert.Equal(t, project.FileKindSource, p.FileKind("/src/fresh.ts"))
	assert.Equal(t, 1, fs.RefreshCount(), "reset must force a rescan")
}

func TestProject_DisposeIsTerminalAndIdempotent(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{"/src/a.ts": "a"})
	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "")

	p.Dispose()
	p.Dispose()

	assert.Equal(t, project.FileKindNone, p.FileKind("/src/a.ts"))
	assert.Empty(t, p.ProjectFilesSet())

	err := p.Init(context.Background())
	assert.True(t, errors.Is(err, project.ErrProjectDisposed))

	err = p.Update(context.Background(), Config{Sources: []string{"/x.ts"}})
	assert.True(t, errors.Is(err, project.ErrProjectDisposed))

	// ApplyChanges on a disposed project is a no-op, not a panic.
	p.ApplyChanges([]fsevents.ChangeRecord{{Kind: fsevents.ChangeAdd, FileName: "/src/b.ts"}})
	assert.Empty(t, p.ProjectFilesSet())
}

func TestProject_ProjectFilesSetIsACopy(t *testing.T) {
	fs := fsevents.NewMemFS(map[string]string{"/src/a.ts": "a"})
	p := newProject(t, Config{Sources: []string{"/src/*.ts"}}, fs, "")

	set := p.ProjectFilesSet()
	set["/injected.ts"] = true

	assert.Equal(t, project.FileKindNone, p.FileKind("/injected.ts"))
}
