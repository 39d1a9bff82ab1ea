package usage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/phobologic/templan/internal/model"
)

func inv(name, file, sig string) model.InvocationSite {
	return model.InvocationSite{Template: model.TemplateName(name), File: file, Signature: sig}
}

func ref(name, expr string) model.VariableReference {
	return model.VariableReference{Template: model.TemplateName(name), Expression: expr}
}

func TestBuildEmptyFilterExcludesUninvoked(t *testing.T) {
	t.Parallel()

	got := Build(
		[]model.InvocationSite{inv("A", "f1", "x")},
		[]model.VariableReference{ref("A", "v1"), ref("B", "v2")},
		"",
	)
	if _, ok := got["A"]; !ok {
		t.Error("A should be included")
	}
	if _, ok := got["B"]; ok {
		t.Error("B has no invocations and should be excluded")
	}
	if want := []string{"v1"}; !reflect.DeepEqual(got["A"].References, want) {
		t.Errorf("A refs = %v, want %v", got["A"].References, want)
	}
}

func TestBuildInvokedWithoutReferences(t *testing.T) {
	t.Parallel()

	got := Build([]model.InvocationSite{inv("C", "f1", "x")}, nil, "")
	e, ok := got["C"]
	if !ok {
		t.Fatal("C should be included")
	}
	if len(e.References) != 0 {
		t.Errorf("C refs = %v, want none", e.References)
	}
}

func TestBuildSignatureFilter(t *testing.T) {
	t.Parallel()

	invs := []model.InvocationSite{
		inv("A", "f1", "cycle.start"),
		inv("B", "f1", "form.submit"),
	}
	got := Build(invs, nil, "cycle")
	if len(got) != 1 {
		t.Fatalf("expected 1 template, got %d: %v", len(got), got)
	}
	if _, ok := got["A"]; !ok {
		t.Error("A should be included")
	}
}

func TestBuildFilterKeepsAllInvocations(t *testing.T) {
	t.Parallel()

	invs := []model.InvocationSite{
		inv("A", "b.py", "form=f"),
		inv("A", "a.py", "cycle=c"),
	}
	got := Build(invs, nil, "cycle")
	if n := len(got["A"].Invocations); n != 2 {
		t.Errorf("filter gates templates, not invocations: got %d invocations, want 2", n)
	}
}

func TestBuildSortsAndDeduplicates(t *testing.T) {
	t.Parallel()

	invs := []model.InvocationSite{
		inv("A", "b.py", "z"),
		inv("A", "a.py", "y"),
		inv("A", "a.py", "x"),
	}
	refs := []model.VariableReference{
		ref("A", "user.name"),
		ref("A", "cycle.title"),
		ref("A", "user.name"),
	}
	got := Build(invs, refs, "")["A"]

	wantInvs := []model.InvocationSite{
		inv("A", "a.py", "x"),
		inv("A", "a.py", "y"),
		inv("A", "b.py", "z"),
	}
	if !reflect.DeepEqual(got.Invocations, wantInvs) {
		t.Errorf("invocations = %+v, want %+v", got.Invocations, wantInvs)
	}
	if want := []string{"cycle.title", "user.name"}; !reflect.DeepEqual(got.References, want) {
		t.Errorf("references = %v, want %v", got.References, want)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	invs := []model.InvocationSite{inv("A", "b.py", "z"), inv("A", "a.py", "y")}
	Build(invs, nil, "")
	if invs[0].File != "b.py" {
		t.Error("Build reordered its input slice")
	}
}

func TestIndexAccessors(t *testing.T) {
	t.Parallel()

	r := &ScanResult{
		Invocations: []model.InvocationSite{
			inv("Zeta", "a.py", "x"),
			inv("Alpha", "a.py", "x"),
			inv("Alpha", "b.py", "y"),
		},
		References: []model.VariableReference{ref("Orphan", "o")},
	}
	idx := r.Index("")

	if want := []model.TemplateName{"Alpha", "Zeta"}; !reflect.DeepEqual(idx.Names(), want) {
		t.Errorf("Names = %v, want %v", idx.Names(), want)
	}
	if idx.TemplateCount() != 2 {
		t.Errorf("TemplateCount = %d, want 2", idx.TemplateCount())
	}
	if idx.InvocationCount() != 3 {
		t.Errorf("InvocationCount = %d, want 3", idx.InvocationCount())
	}
	entries := idx.Entries()
	if entries[0].Template != "Alpha" || entries[1].Template != "Zeta" {
		t.Errorf("Entries not name-ordered: %+v", entries)
	}
	if _, ok := idx.Get("Orphan"); ok {
		t.Error("Orphan should not be indexed")
	}

	unused := r.Unused()
	if len(unused) != 1 || unused[0].Template != "Orphan" || !unused[0].Unused() {
		t.Errorf("Unused = %+v", unused)
	}
}

type fakeIndex struct {
	lines []string
	err   error
	calls []string
}

func (f *fakeIndex) Search(_ context.Context, pattern, root string) ([]string, error) {
	f.calls = append(f.calls, pattern+"@"+root)
	return f.lines, f.err
}

func TestScan(t *testing.T) {
	t.Parallel()

	invs := &fakeIndex{lines: []string{
		"./views.py:  message_router.render('Welcome', user=u)",
		"./views.py:  unrelated noise",
	}}
	refs := &fakeIndex{lines: []string{
		`faces/MessageTemplates/Welcome.dtml:<dtml-var expr="user.name">`,
	}}
	opts := Options{
		SourceRoot:        ".",
		InvocationPattern: "message_router.render",
		TemplatesRoot:     "faces/MessageTemplates",
		ReferencePattern:  "<dtml-",
	}

	res, err := Scan(context.Background(), Sources{Invocations: invs, References: refs}, opts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Invocations) != 1 || len(res.References) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if invs.calls[0] != "message_router.render@." {
		t.Errorf("invocation search = %q", invs.calls[0])
	}
	if refs.calls[0] != "<dtml-@faces/MessageTemplates" {
		t.Errorf("reference search = %q", refs.calls[0])
	}
}

func TestScanPropagatesSearchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Scan(context.Background(), Sources{
		Invocations: &fakeIndex{},
		References:  &fakeIndex{err: boom},
	}, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
