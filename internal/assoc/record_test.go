package assoc

import (
	"errors"
	"testing"

	"github.com/papapumpkin/assoc/internal/drawing"
)

func TestRecord_AttachOrdering(t *testing.T) {
	t.Parallel()
	tg := newTestGraph(t)
	obj := tg.entity(t)
	a := tg.action(t, &fakeBody{})
	late, err := a.AddDependency(Dependency{Object: obj, Name: "late", Order: 5})
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	early, err := a.AddDependency(Dependency{Object: obj, Name: "early", Order: -1})
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	tie, err := a.AddDependency(Dependency{Object: obj, Name: "tie", Order: 5})
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	got := tg.db.Reactors(obj)
	want := []drawing.ReactorID{early.ID(), late.ID(), tie.ID()}
	if len(got) != len(want) {
		t.Fatalf("reactors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reactors[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRecord_AttachTwiceFails(t *testing.T) {
	t.Parallel()
	tg := newTestGraph(t)
	obj := tg.entity(t)
	a := tg.action(t, &fakeBody{})
	r, err := a.AddDependency(Dependency{Object: obj, Name: "source"})
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := r.Attach(obj); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	r.Detach()
	r.Detach()
	if r.IsAttached() || len(tg.db.Reactors(obj)) != 0 {
		t.Error("record should be detached")
	}
	if err := r.Attach(obj); err != nil {
		t.Errorf("re-attaching a detached record: %v", err)
	}
}

func TestRecord_StatusMachine(t *testing.T) {
	t.Parallel()
	tg := newTestGraph(t)
	src := tg.entity(t)
	out := tg.entity(t)
	body := &fakeBody{}
	a := tg.action(t, body,
		Dependency{Object: src, Name: "source", Read: true},
		Dependency{Object: out, Name: "dest", Write: true},
	)
	if err := tg.net.Evaluate(nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	source, dest := a.Record("source"), a.Record("dest")

	// Write-only records ignore edits of their object.
	touch(t, tg.db, out)
	if dest.Status() != StatusUpToDate || a.Status() != StatusUpToDate {
		t.Errorf("write-only edit changed status: record %s action %s", dest.Status(), a.Status())
	}

	touch(t, tg.db, src)
	if source.Status() != StatusChangedDirectly || a.Status() != StatusChangedDirectly {
		t.Errorf("read edit: record %s action %s, want ChangedDirectly", source.Status(), a.Status())
	}
	if err := tg.net.Evaluate(nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if source.Status() != StatusUpToDate {
		t.Errorf("record status after evaluate = %s", source.Status())
	}

	if err := tg.db.Erase(src); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if source.Status() != StatusErased || source.IsAttached() {
		t.Errorf("erased source: status %s attached %v", source.Status(), source.IsAttached())
	}
	if a.Status() != StatusErased {
		t.Errorf("action status = %s, want Erased", a.Status())
	}
}

func TestRecord_SuppressedWhileEvaluating(t *testing.T) {
	t.Parallel()
	tg := newTestGraph(t)
	obj := tg.entity(t)
	body := &fakeBody{}
	body.fn = func(ec *EvaluationContext, a *Action) error {
		// Editing a watched object from inside the body does not
		// schedule the action again.
		touch(t, ec.Graph().Database(), obj)
		return nil
	}
	a := tg.action(t, body, Dependency{Object: obj, Name: "source", Read: true})

	if err := tg.net.Evaluate(nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if body.calls != 1 || a.Status() != StatusUpToDate {
		t.Errorf("calls = %d status = %s, want 1 and UpToDate", body.calls, a.Status())
	}
}

func TestStatus_WorseAndParse(t *testing.T) {
	t.Parallel()
	if got := StatusChangedDirectly.Worse(StatusErased); got != StatusErased {
		t.Errorf("Worse = %s, want Erased", got)
	}
	if got := StatusFailedToEvaluate.Worse(StatusChangedDirectly); got != StatusFailedToEvaluate {
		t.Errorf("Worse = %s, want FailedToEvaluate", got)
	}
	for _, s := range []Status{StatusUpToDate, StatusChangedDirectly, StatusFailedToEvaluate, StatusErased} {
		got, err := ParseStatus(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStatus("Dirty"); err == nil {
		t.Error("expected an error for an unknown status")
	}
}
