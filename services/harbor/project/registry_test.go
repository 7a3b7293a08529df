// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/harbor/services/harbor/fsevents"
)

// fakeInstance records lifecycle calls and answers queries from fixed maps.
type fakeInstance struct {
	name   string
	config any

	mu           sync.Mutex
	files        map[string]bool
	kinds        map[string]FileKind
	initCalls    int
	updateCalls  int
	disposeCalls int
	batches      [][]fsevents.ChangeRecord
	disposed     bool

	initErr   error
	updateErr error
}

func (f *fakeInstance) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.disposed {
		return ErrProjectDisposed
	}
	return f.initErr
}

func (f *fakeInstance) Update(ctx context.Context, config any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.disposed {
		return ErrProjectDisposed
	}
	f.config = config
	return f.updateErr
}

func (f *fakeInstance) ApplyChanges(batch []fsevents.ChangeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
}

func (f *fakeInstance) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposeCalls++
	f.disposed = true
}

func (f *fakeInstance) FileKind(fileName string) FileKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kinds[fileName]
}

func (f *fakeInstance) ProjectFilesSet() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.files))
	for p := range f.files {
		out[p] = true
	}
	return out
}

func (f *fakeInstance) snapshot() (inits, updates, disposes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.updateCalls, f.disposeCalls
}

// testFactory builds fakeInstances, optionally failing init for configured
// names. Temp instances (name "temp:<file>") claim their owner file as
// SOURCE, matching what a real single-file project reports.
type testFactory struct {
	mu       sync.Mutex
	created  []*fakeInstance
	byName   map[string][]*fakeInstance
	initErrs map[string]error
	kinds    map[string]map[string]FileKind
}

func newTestFactory() *testFactory {
	return &testFactory{
		byName:   make(map[string][]*fakeInstance),
		initErrs: make(map[string]error),
		kinds:    make(map[string]map[string]FileKind),
	}
}

func (tf *testFactory) new(name string, config any, fs fsevents.FileSystem, lib string, ws WorkingSet) Instance {
	tf.mu.Lock()
	defer tf.mu.Unlock()

	inst := &fakeInstance{
		name:    name,
		config:  config,
		files:   make(map[string]bool),
		kinds:   make(map[string]FileKind),
		initErr: tf.initErrs[name],
	}
	for file, kind := range tf.kinds[name] {
		inst.kinds[file] = kind
		inst.files[file] = true
	}
	if owner, ok := strings.CutPrefix(name, "temp:"); ok {
		inst.files[owner] = true
		inst.kinds[owner] = FileKindSource
	}

	tf.created = append(tf.created, inst)
	tf.byName[name] = append(tf.byName[name], inst)
	return inst
}

func (tf *testFactory) createdCount() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.created)
}

func (tf *testFactory) last(name string) *fakeInstance {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	instances := tf.byName[name]
	if len(instances) == 0 {
		return nil
	}
	return instances[len(instances)-1]
}

func newTestManager(t *testing.T, tf *testFactory, names ...string) (*Manager, *fsevents.MemFS) {
	t.Helper()

	fs := fsevents.NewMemFS(nil)
	mgr := NewManager(tf.new)
	err := mgr.Init(context.Background(), InitOptions{
		Configs:            configMapOf(names...),
		FileSystem:         fs,
		DefaultLibLocation: "/lib/defaults",
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return mgr, fs
}

func TestManager_Init_CreatesOnePerName(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf, "p1", "p2", "p3")
	defer mgr.Dispose()

	if got := tf.createdCount(); got != 3 {
		t.Fatalf("created %d instances, want 3", got)
	}
	for _, name := range []string{"p1", "p2", "p3"} {
		inst := tf.last(name)
		if inst == nil {
			t.Fatalf("no instance created for %s", name)
		}
		if inits, _, _ := inst.snapshot(); inits != 1 {
			t.Errorf("%s init calls = %d, want 1", name, inits)
		}
	}

	want := []string{"p1", "p2", "p3"}
	got := mgr.Projects()
	if len(got) != len(want) {
		t.Fatalf("Projects() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Projects()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestManager_Init_ZeroConfigs(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf)
	defer mgr.Dispose()

	if got := tf.createdCount(); got != 0 {
		t.Errorf("created %d instances, want 0", got)
	}
	if got := mgr.Projects(); len(got) != 0 {
		t.Errorf("Projects() = %v, want empty", got)
	}
}

func TestManager_Init_RequiresFileSystem(t *testing.T) {
	mgr := NewManager(newTestFactory().new)
	err := mgr.Init(context.Background(), InitOptions{})
	if !errors.Is(err, ErrNoFileSystem) {
		t.Errorf("Init() error = %v, want ErrNoFileSystem", err)
	}
}

func TestManager_UpdateBeforeInit(t *testing.T) {
	mgr := NewManager(newTestFactory().new)
	err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1"))
	if !errors.Is(err, ErrManagerNotInitialized) {
		t.Errorf("UpdateProjectConfigs() error = %v, want ErrManagerNotInitialized", err)
	}
}

func TestManager_UpdateProjectConfigs_Remove(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf, "p1", "p2")
	defer mgr.Dispose()

	if err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1")); err != nil {
		t.Fatalf("UpdateProjectConfigs() error = %v", err)
	}

	if got := tf.createdCount(); got != 2 {
		t.Errorf("created %d instances total, want 2 (no recreation)", got)
	}

	_, updates, disposes := tf.last("p1").snapshot()
	if updates != 1 {
		t.Errorf("p1 update calls = %d, want 1", updates)
	}
	if disposes != 0 {
		t.Errorf("p1 dispose calls = %d, want 0", disposes)
	}

	_, _, disposes = tf.last("p2").snapshot()
	if disposes != 1 {
		t.Errorf("p2 dispose calls = %d, want 1", disposes)
	}

	if got := mgr.Projects(); len(got) != 1 || got[0] != "p1" {
		t.Errorf("Projects() = %v, want [p1]", got)
	}
}

func TestManager_UpdateProjectConfigs_Add(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf, "p1", "p2")
	defer mgr.Dispose()

	if err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1", "p2", "p3")); err != nil {
		t.Fatalf("UpdateProjectConfigs() error = %v", err)
	}

	if got := tf.createdCount(); got != 3 {
		t.Errorf("created %d instances total, want 3 (only p3 new)", got)
	}
	for _, name := range []string{"p1", "p2"} {
		inits, updates, disposes := tf.last(name).snapshot()
		if inits != 1 || updates != 1 || disposes != 0 {
			t.Errorf("%s calls = init %d / update %d / dispose %d, want 1/1/0",
				name, inits, updates, disposes)
		}
	}
	inits, updates, _ := tf.last("p3").snapshot()
	if inits != 1 || updates != 0 {
		t.Errorf("p3 calls = init %d / update %d, want 1/0", inits, updates)
	}
}

func TestManager_UpdateProjectConfigs_SameNames(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf, "p1", "p2")
	defer mgr.Dispose()

	if err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1", "p2")); err != nil {
		t.Fatalf("UpdateProjectConfigs() error = %v", err)
	}

	if got := tf.createdCount(); got != 2 {
		t.Errorf("created %d instances total, want 2", got)
	}
	for _, name := range []string{"p1", "p2"} {
		_, updates, disposes := tf.last(name).snapshot()
		if updates != 1 || disposes != 0 {
			t.Errorf("%s calls = update %d / dispose %d, want 1/0", name, updates, disposes)
		}
	}
}

func TestManager_UpdateProjectConfigs_InitFailureSurfaces(t *testing.T) {
	tf := newTestFactory()
	boom := errors.New("bad config")
	tf.initErrs["p3"] = boom

	mgr, _ := newTestManager(t, tf, "p1")
	defer mgr.Dispose()

	err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1", "p3"))
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateProjectConfigs() error = %v, want wrapped %v", err, boom)
	}

	// The failing sibling does not block p1's update, and p3 never
	// becomes visible.
	_, updates, _ := tf.last("p1").snapshot()
	if updates != 1 {
		t.Errorf("p1 update calls = %d, want 1", updates)
	}
	if got := mgr.Projects(); len(got) != 1 || got[0] != "p1" {
		t.Errorf("Projects() = %v, want [p1]", got)
	}

	// The orphan was disposed.
	_, _, disposes := tf.last("p3").snapshot()
	if disposes != 1 {
		t.Errorf("p3 dispose calls = %d, want 1", disposes)
	}
}

func TestManager_UpdateProjectConfigs_FailedInitRetriedAsAdd(t *testing.T) {
	tf := newTestFactory()
	boom := errors.New("transient")
	tf.initErrs["p2"] = boom

	fs := fsevents.NewMemFS(nil)
	mgr := NewManager(tf.new)
	if err := mgr.Init(context.Background(), InitOptions{
		Configs:    configMapOf("p1", "p2"),
		FileSystem: fs,
	}); !errors.Is(err, boom) {
		t.Fatalf("Init() error = %v, want wrapped %v", err, boom)
	}
	defer mgr.Dispose()

	// p2's config is retained by name, but its instance never went live:
	// the update must create it, not call Update on a corpse.
	delete(tf.initErrs, "p2")
	if err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1", "p2")); err != nil {
		t.Fatalf("UpdateProjectConfigs() error = %v", err)
	}

	if got := mgr.Projects(); len(got) != 2 {
		t.Errorf("Projects() = %v, want [p1 p2]", got)
	}
	inits, updates, _ := tf.last("p2").snapshot()
	if inits != 1 || updates != 0 {
		t.Errorf("new p2 calls = init %d / update %d, want 1/0", inits, updates)
	}
}

func TestManager_ForwardsBatchesInOrder(t *testing.T) {
	tf := newTestFactory()
	mgr, fs := newTestManager(t, tf, "p1", "p2")
	defer mgr.Dispose()

	first := []fsevents.ChangeRecord{{Kind: fsevents.ChangeAdd, FileName: "/a.ts"}}
	second := []fsevents.ChangeRecord{
		{Kind: fsevents.ChangeUpdate, FileName: "/a.ts"},
		{Kind: fsevents.ChangeDelete, FileName: "/b.ts"},
	}
	fs.EmitBatch(first)
	fs.EmitBatch(second)

	for _, name := range []string{"p1", "p2"} {
		inst := tf.last(name)
		inst.mu.Lock()
		batches := inst.batches
		inst.mu.Unlock()

		if len(batches) != 2 {
			t.Fatalf("%s received %d batches, want 2", name, len(batches))
		}
		if len(batches[0]) != 1 || batches[0][0].FileName != "/a.ts" {
			t.Errorf("%s batch 0 = %v, want first batch", name, batches[0])
		}
		if len(batches[1]) != 2 {
			t.Errorf("%s batch 1 = %v, want second batch", name, batches[1])
		}
	}
}

func TestManager_Dispose_DisposesEverythingOnce(t *testing.T) {
	tf := newTestFactory()
	mgr, fs := newTestManager(t, tf, "p1", "p2")

	// Materialize a temp project too.
	if _, err := mgr.GetProjectForFile(context.Background(), "/orphan.ts"); err != nil {
		t.Fatalf("GetProjectForFile() error = %v", err)
	}

	mgr.Dispose()
	mgr.Dispose() // idempotent

	for _, inst := range tf.created {
		_, _, disposes := inst.snapshot()
		if disposes != 1 {
			t.Errorf("%s dispose calls = %d, want exactly 1", inst.name, disposes)
		}
	}
	if fs.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d after dispose, want 0", fs.SubscriberCount())
	}

	if err := mgr.UpdateProjectConfigs(context.Background(), configMapOf("p1")); !errors.Is(err, ErrManagerDisposed) {
		t.Errorf("UpdateProjectConfigs() after dispose = %v, want ErrManagerDisposed", err)
	}
	if _, err := mgr.GetProjectForFile(context.Background(), "/x.ts"); !errors.Is(err, ErrManagerDisposed) {
		t.Errorf("GetProjectForFile() after dispose = %v, want ErrManagerDisposed", err)
	}
}

func TestManager_SerializedUpdates(t *testing.T) {
	tf := newTestFactory()
	mgr, _ := newTestManager(t, tf, "p1")
	defer mgr.Dispose()

	// Hammer the manager with overlapping updates flipping between two
	// mappings. Serialization means every diff ran against settled state,
	// so the final mapping must exactly match the last write and every
	// instance must have been disposed at most once.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var cfgs *ConfigMap
			if i%2 == 0 {
				cfgs = configMapOf("p1", "p2")
			} else {
				cfgs = configMapOf("p1")
			}
			_ = mgr.UpdateProjectConfigs(context.Background(), cfgs)
		}(i)
	}
	wg.Wait()

	final := configMapOf("p1", "p2")
	if err := mgr.UpdateProjectConfigs(context.Background(), final); err != nil {
		t.Fatalf("final update error = %v", err)
	}

	got := mgr.Projects()
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Fatalf("Projects() = %v, want [p1 p2]", got)
	}

	tf.mu.Lock()
	defer tf.mu.Unlock()
	for _, inst := range tf.created {
		inst.mu.Lock()
		if inst.disposeCalls > 1 {
			t.Errorf("%s disposed %d times", inst.name, inst.disposeCalls)
		}
		inst.mu.Unlock()
	}
}
