package tree

import "testing"

func TestUpsertNewTreeIsNotMarkedTodo(t *testing.T) {
	r := NewRegistry()
	res := r.Upsert(Tree{Name: "test", Locales: []string{"de"}})
	if !res.IsNew || !res.Changed {
		t.Fatalf("Upsert on a new tree = %+v, want {Changed:true IsNew:true}", res)
	}
	if todo := r.DrainTodo(); len(todo) != 0 {
		t.Fatalf("DrainTodo() = %v, want empty for a brand-new tree", todo)
	}
}

func TestUpsertUnchangedConfigIsNoop(t *testing.T) {
	r := NewRegistry()
	tr := Tree{Name: "test", Locales: []string{"de"}}
	r.Upsert(tr)
	res := r.Upsert(tr)
	if res.Changed {
		t.Fatalf("Upsert of an identical config reported Changed, want false")
	}
}

func TestUpsertChangedConfigMarksTodo(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Tree{Name: "test", TLD: "old"})
	res := r.Upsert(Tree{Name: "test", TLD: "new"})
	if !res.Changed || res.IsNew {
		t.Fatalf("Upsert on a changed existing tree = %+v, want {Changed:true IsNew:false}", res)
	}
	todo := r.DrainTodo()
	if !todo["test"] {
		t.Fatalf("DrainTodo() = %v, want {test: true}", todo)
	}
	// A second drain observes nothing new.
	if todo2 := r.DrainTodo(); len(todo2) != 0 {
		t.Fatalf("second DrainTodo() = %v, want empty", todo2)
	}
}

func TestGetReturnsFalseForUnknownTree(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("Get(missing) reported ok=true")
	}
}

func TestUpdateLocalesReportsOnlyNewlyAdded(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Tree{Name: "test", Locales: []string{"de", "fr"}})

	added := r.UpdateLocales("test", []string{"de", "fr", "ja"})
	if len(added) != 1 || added[0] != "ja" {
		t.Fatalf("UpdateLocales added = %v, want [ja]", added)
	}
	got, _ := r.Get("test")
	if len(got.Locales) != 3 {
		t.Fatalf("Locales after update = %v, want 3 entries", got.Locales)
	}
}

func TestUpdateLocalesOnUnknownTreeIsNoop(t *testing.T) {
	r := NewRegistry()
	if added := r.UpdateLocales("missing", []string{"de"}); added != nil {
		t.Fatalf("UpdateLocales on unknown tree = %v, want nil", added)
	}
}

func TestAllReturnsEverySavedTree(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Tree{Name: "a"})
	r.Upsert(Tree{Name: "b"})
	if got := len(r.All()); got != 2 {
		t.Fatalf("len(All()) = %d, want 2", got)
	}
}
